package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/koustreak/bucketfs/internal/errs"
	"github.com/spf13/cobra"
)

func optionalPath(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func (a *app) lsCmd() *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List files directly under a path",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := a.fs.GetFiles(commandContext(cmd), optionalPath(args), filter)
			if err != nil {
				return err
			}
			for _, f := range files {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "glob matched against file names, e.g. *.jpg")
	return cmd
}

func (a *app) dirsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dirs [path]",
		Short: "List directories directly under a path",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dirs, err := a.fs.GetDirectories(commandContext(cmd), optionalPath(args))
			if err != nil {
				return err
			}
			for _, d := range dirs {
				fmt.Fprintln(cmd.OutOrStdout(), d)
			}
			return nil
		},
	}
}

func (a *app) catCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <path>",
		Short: "Write a file's content to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.fs.OpenFile(commandContext(cmd), args[0])
			if err != nil {
				return err
			}
			_, err = io.Copy(cmd.OutOrStdout(), r)
			return err
		},
	}
}

func (a *app) putCmd() *cobra.Command {
	var noOverride bool

	cmd := &cobra.Command{
		Use:   "put <local-file|-> <path>",
		Short: "Upload a local file, or stdin with -, as a public object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				src = f
			}

			if err := a.fs.AddFile(commandContext(cmd), args[1], src, !noOverride); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.fs.GetURL(args[1]))
			return nil
		},
	}
	cmd.Flags().BoolVar(&noOverride, "no-override", false, "fail if the object already exists")
	return cmd
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path>",
		Short: "Delete a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.fs.DeleteFile(commandContext(cmd), args[0])
		},
	}
}

func (a *app) rmdirCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "rmdir <path>",
		Short: "Delete every object under a path",
		Long: `Delete every object whose key starts with the resolved path.
The match is on the literal key prefix, so "docs" also removes "docs-old/".
Pass a trailing "/" to limit the deletion to one directory.
Deleting the root ("/" or "") empties the whole prefix and needs --all.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.fs.IsRoot(args[0]) && !all {
				return errs.New(errs.ErrKindInvalidInput, "deleting the root requires --all")
			}
			return a.fs.RemoveDirectory(commandContext(cmd), args[0])
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "allow deleting the root")
	return cmd
}

func (a *app) statCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <path>",
		Short: "Show whether a file exists and when it was last modified",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			out := cmd.OutOrStdout()

			exists, err := a.fs.FileExists(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "url:      %s\n", a.fs.GetURL(args[0]))
			fmt.Fprintf(out, "exists:   %t\n", exists)
			if !exists {
				return nil
			}

			modified, err := a.fs.GetLastModified(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "modified: %s\n", modified.Format(time.RFC3339))
			return nil
		},
	}
}

func (a *app) urlCmd() *cobra.Command {
	var relative bool

	cmd := &cobra.Command{
		Use:   "url <path>",
		Short: "Print the public URL of a path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if relative {
				fmt.Fprintln(cmd.OutOrStdout(), a.fs.GetRelativePath(args[0]))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.fs.GetURL(args[0]))
			return nil
		},
	}
	cmd.Flags().BoolVar(&relative, "relative", false, "leave absolute URLs unchanged")
	return cmd
}
