package main

import (
	"fmt"
	"io"

	"medilingua/history"
)

// printHistory writes the n most recent transcriptions, each followed by
// the translations made from it.
func printHistory(w io.Writer, store *history.Store, n int) error {
	entries, err := store.List(n)
	if err != nil {
		return err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.Kind != history.KindTranscription {
			continue
		}
		fmt.Fprintf(w, "%s  (%.1fs)  %s\n", e.CreatedAt.Format("2006-01-02 15:04:05"), e.AudioSeconds, e.Text)

		related, err := store.ForSession(e.SessionID)
		if err != nil {
			return err
		}
		for _, r := range related {
			if r.Kind != history.KindTranslation {
				continue
			}
			fmt.Fprintf(w, "    [%s] %s\n", r.Language, r.Text)
			if r.Deidentified != "" {
				fmt.Fprintf(w, "    [de-identified] %s\n", r.Deidentified)
			}
		}
	}
	return nil
}
