package main

import (
	"bufio"
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"notesync/internal/client"
)

func (c *cli) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the sidebar: every note title, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withWorkspace(cmd, func(ws *client.Workspace) error {
				renderSidebar(cmd.OutOrStdout(), ws.Notes(), ws.CurrentNote())
				return nil
			})
		},
	}
}

func (c *cli) newCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Create a note and print its id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withWorkspace(cmd, func(ws *client.Workspace) error {
				note, err := ws.NewNote(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), note.ID)
				return nil
			})
		},
	}
}

func (c *cli) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm ID",
		Short: "Delete a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withWorkspace(cmd, func(ws *client.Workspace) error {
				return ws.DeleteNote(cmd.Context(), args[0])
			})
		},
	}
}

func (c *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Print a note's markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withWorkspace(cmd, func(ws *client.Workspace) error {
				if err := selectExisting(cmd, ws, args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ws.Text())
				return nil
			})
		},
	}
}

func (c *cli) editCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit ID",
		Short: "Append stdin to a note line by line, writing back as you type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withWorkspace(cmd, func(ws *client.Workspace) error {
				if err := selectExisting(cmd, ws, args[0]); err != nil {
					return err
				}

				scanner := bufio.NewScanner(cmd.InOrStdin())
				scanner.Buffer(make([]byte, 64*1024), 1<<20)
				for scanner.Scan() {
					text := ws.Text()
					if text != "" {
						text += "\n"
					}
					if err := ws.Edit(text + scanner.Text()); err != nil {
						return err
					}
				}
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				return ws.Flush(cmd.Context())
			})
		},
	}
}

func (c *cli) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the sidebar after every change until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withWorkspace(cmd, func(ws *client.Workspace) error {
				var mu sync.Mutex
				out := cmd.OutOrStdout()
				render := func() {
					mu.Lock()
					defer mu.Unlock()
					renderSidebar(out, ws.Notes(), ws.CurrentNote())
					fmt.Fprintln(out)
				}
				ws.OnChange(render)
				render()

				<-cmd.Context().Done()
				return nil
			})
		},
	}
}

// withWorkspace runs fn against a ready workspace, then closes it. Closing
// writes any pending edit, so its error is part of the command's result.
func (c *cli) withWorkspace(cmd *cobra.Command, fn func(*client.Workspace) error) error {
	ws, closeWS, err := c.openWorkspace(cmd)
	if err != nil {
		return err
	}
	err = fn(ws)
	if cerr := closeWS(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("close: %w", cerr))
	}
	return err
}

func selectExisting(cmd *cobra.Command, ws *client.Workspace, id string) error {
	for _, n := range ws.Notes() {
		if n.ID == id {
			return ws.Select(cmd.Context(), id)
		}
	}
	return errors.New("no note with id " + id)
}
