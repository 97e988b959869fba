package services

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ImportSourceAO3 marks fanworks brought over from Archive of Our Own.
const ImportSourceAO3 = "ao3"

const maxPastedTitleLength = 80

var ao3WorkURL = regexp.MustCompile(`^https?://(www\.)?archiveofourown\.org/works/\d+([/?#].*)?$`)

var errInvalidAO3URL = errors.New("must be an Archive of Our Own work URL like https://archiveofourown.org/works/12345")

// ValidateAO3URL checks that raw points at an AO3 work page. The URL is never
// fetched; import works entirely from what the author pastes in.
func ValidateAO3URL(raw string) error {
	if !ao3WorkURL.MatchString(strings.TrimSpace(raw)) {
		return errInvalidAO3URL
	}
	return nil
}

// SplitPastedWork splits text pasted from an AO3 work into a title and body.
// A short first line with no period reads as a title; otherwise the whole
// paste is body and the title is left empty.
func SplitPastedWork(pasted string) (title, body string) {
	trimmed := strings.TrimSpace(pasted)
	if trimmed == "" {
		return "", ""
	}

	first, rest, found := strings.Cut(trimmed, "\n")
	if !found {
		return "", trimmed
	}
	first = strings.TrimSpace(first)
	rest = strings.TrimSpace(rest)
	if rest == "" || first == "" {
		return "", trimmed
	}
	if utf8.RuneCountInString(first) > maxPastedTitleLength || strings.Contains(first, ".") {
		return "", trimmed
	}
	return first, rest
}
