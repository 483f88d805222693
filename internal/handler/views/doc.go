// Package views holds the templ components for the HTML pages.
package views
