package main

import (
	"fmt"
	"io"

	"notesync/internal/notes/models"
)

// renderSidebar prints one line per note, marking the current one.
func renderSidebar(w io.Writer, notes []*models.Note, current *models.Note) {
	if len(notes) == 0 {
		fmt.Fprintln(w, "You have no notes")
		return
	}
	for _, n := range notes {
		marker := " "
		if current != nil && n.ID == current.ID {
			marker = ">"
		}
		fmt.Fprintf(w, "%s %s  (%s)\n", marker, n.Title(), n.ID)
	}
}
