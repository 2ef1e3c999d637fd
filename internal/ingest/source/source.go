// Package source defines the page-source contract scrapes consume, plus the
// shared error taxonomy and emission helper.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	// ErrElementNotFound means a selector matched nothing
	ErrElementNotFound = errors.New("element not found")

	// ErrTimeout means a wait point exceeded its bound
	ErrTimeout = errors.New("timed out waiting for page")
)

// ParseError reports a field that could not be read from the page
type ParseError struct {
	Field string
	Raw   string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Raw != "" {
		return fmt.Sprintf("parse %s from %q: %v", e.Field, e.Raw, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.Field, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NotFound builds an ErrElementNotFound error for a selector
func NotFound(selector string) error {
	return fmt.Errorf("%w: %s", ErrElementNotFound, selector)
}

// Browser opens rendered pages. Implementations own the browser session.
type Browser interface {
	// Open navigates a new page to url and waits until readySelector is present.
	Open(ctx context.Context, url, readySelector string) (Page, error)
}

// Session is a running browser that must be released when the scrape ends
type Session interface {
	Browser
	Close() error
}

// Launcher starts browser sessions
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// Page is one open, rendered document
type Page interface {
	// URL returns the address the page was opened at
	URL() string

	// Document snapshots the current DOM
	Document(ctx context.Context) (*goquery.Document, error)

	// LoadMore clicks buttonSelector and waits until more itemSelector nodes
	// appear. It returns false when the button is absent.
	LoadMore(ctx context.Context, buttonSelector, itemSelector string) (bool, error)

	// Reload navigates to the page URL again
	Reload(ctx context.Context) error

	Close() error
}

// MatchContext is threaded through extraction of one match
type MatchContext struct {
	ID   string
	Name string
	URL  string
}

// Resolve turns a possibly relative href into an absolute URL against base
func Resolve(base, href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", NotFound("href")
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", &ParseError{Field: "href", Raw: href, Err: err}
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", &ParseError{Field: "base url", Raw: base, Err: err}
	}
	return b.ResolveReference(ref).String(), nil
}
