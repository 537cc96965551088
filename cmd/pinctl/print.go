package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/tendant/simple-pins/pkg/pinboard"
)

func printPin(w io.Writer, pin *pinboard.Pin, authors map[string]*pinboard.User) {
	fmt.Fprintf(w, "ID:          %s\n", pin.ID)
	fmt.Fprintf(w, "Title:       %s\n", pin.Title)
	fmt.Fprintf(w, "About:       %s\n", pin.Description)
	fmt.Fprintf(w, "Destination: %s\n", pin.DestinationURL)
	fmt.Fprintf(w, "Category:    %s\n", pin.Category)
	fmt.Fprintf(w, "Author:      %s\n", authorName(authors, pin.AuthorID))
	fmt.Fprintf(w, "Image:       %s\n", pin.Image.URL)
	if !pin.CreatedAt.IsZero() {
		fmt.Fprintf(w, "Created:     %s\n", pin.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	if len(pin.SavedBy) > 0 {
		fmt.Fprintf(w, "Saved by:    %s\n", strings.Join(pin.SavedBy, ", "))
	}
	fmt.Fprintf(w, "\nComments (%d):\n", len(pin.Comments))
	for _, c := range pin.Comments {
		fmt.Fprintf(w, "  %-12s %s\n", authorName(authors, c.AuthorID)+":", c.Text)
	}
}

// authorName shows the display name next to the id when the user is known.
func authorName(authors map[string]*pinboard.User, id string) string {
	if u, ok := authors[id]; ok && u.DisplayName != "" {
		return fmt.Sprintf("%s (%s)", u.DisplayName, id)
	}
	return id
}

func printPinTable(w io.Writer, pins []*pinboard.Pin) {
	if len(pins) == 0 {
		fmt.Fprintln(w, "No pins found")
		return
	}
	fmt.Fprintf(w, "%-36s  %-30s  %-15s  %-12s\n", "ID", "Title", "Category", "Author")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, pin := range pins {
		fmt.Fprintf(w, "%-36s  %-30s  %-15s  %-12s\n",
			pin.ID,
			truncate(pin.Title, 30),
			truncate(pin.Category, 15),
			truncate(pin.AuthorID, 12),
		)
	}
	fmt.Fprintf(w, "\nTotal: %d\n", len(pins))
}

func printUser(w io.Writer, user *pinboard.User) {
	fmt.Fprintf(w, "ID:      %s\n", user.ID)
	fmt.Fprintf(w, "Name:    %s\n", user.DisplayName)
	if user.AvatarRef != "" {
		fmt.Fprintf(w, "Avatar:  %s\n", user.AvatarRef)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
