package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tendant/editor-bridge/pkg/editorbridge"
	"github.com/tendant/editor-bridge/pkg/editorbridge/scan"
)

// NewSeedCommand loads a fixture and prints the created ids.
func NewSeedCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <fixture.yaml>",
		Short: "Seed the repository from a YAML fixture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.seedFile = args[0]
			s, err := openSession(cmd.Context(), cmd, flags)
			if err != nil {
				return err
			}
			defer s.Close()

			paths := make([]string, 0, len(s.ids))
			for p := range s.ids {
				paths = append(paths, p)
			}
			sort.Strings(paths)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PATH\tID")
			for _, p := range paths {
				fmt.Fprintf(tw, "%s\t%s\n", p, s.ids[p])
			}
			return tw.Flush()
		},
	}
}

// NewBrowseCommand lists a folder the way the editor's browser sees it.
func NewBrowseCommand(flags *globalFlags) *cobra.Command {
	var assetTypes, resultTypes []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "browse [folder]",
		Short: "List the items of a folder (the root by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), cmd, flags)
			if err != nil {
				return err
			}
			defer s.Close()

			req := editorbridge.BrowseRequest{Limit: -1}
			if len(args) == 1 {
				req.FolderID = s.ref(args[0])
			}
			for _, t := range assetTypes {
				req.AssetTypes = append(req.AssetTypes, editorbridge.AssetType(t))
			}
			for _, t := range resultTypes {
				req.ResultTypes = append(req.ResultTypes, editorbridge.ResultType(t))
			}

			res, err := s.Service.Browse(cmd.Context(), flags.principal, req)
			if err != nil {
				return fmt.Errorf("browse failed: %w", err)
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TYPE\tLABEL\tID\tSIZE")
			for _, item := range res.Items {
				size := ""
				if item.Metadata != nil {
					size = item.Metadata.Properties[editorbridge.PropFileSize]
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", item.Type, item.Label, item.ID, size)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "%d item(s)\n", res.TotalItemCount)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&assetTypes, "types", "t", []string{"document", "file", "image", "audio", "video"}, "asset types to include")
	cmd.Flags().StringSliceVarP(&resultTypes, "results", "r", []string{"file", "folder"}, "result types (file, folder)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw browse result")
	return cmd
}

// NewGetCommand prints the XML of a document with its lock status.
func NewGetCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <document>",
		Short: "Print an editable document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), cmd, flags)
			if err != nil {
				return err
			}
			defer s.Close()

			doc, err := s.Service.GetDocument(cmd.Context(), flags.principal, s.ref(args[0]))
			if err != nil {
				return fmt.Errorf("get failed: %w", err)
			}
			printf(cmd.ErrOrStderr(), "lock: %s\n", describeLock(doc.Lock))
			printf(cmd.OutOrStdout(), "%s\n", doc.Content)
			return nil
		},
	}
}

// NewLockCommand acquires (lock) or releases (unlock) the editing lock.
func NewLockCommand(flags *globalFlags, acquire bool) *cobra.Command {
	use, short := "lock <document>", "Acquire the editing lock"
	if !acquire {
		use, short = "unlock <document>", "Release the editing lock"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), cmd, flags)
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.Service.SetLock(cmd.Context(), flags.principal, editorbridge.LockRequest{
				DocumentID: s.ref(args[0]),
				Acquire:    acquire,
			})
			if err != nil {
				return fmt.Errorf("lock failed: %w", err)
			}
			printf(cmd.OutOrStdout(), "%s\n", describeLock(res.Lock))
			if !res.Granted {
				return fmt.Errorf("%w: %s", editorbridge.ErrLockUnavailable, res.Lock.Reason)
			}
			return nil
		},
	}
}

// NewResolveCommand shows which rendition GET /asset would serve.
func NewResolveCommand(flags *globalFlags) *cobra.Command {
	var out, variant string

	cmd := &cobra.Command{
		Use:   "resolve <asset>",
		Short: "Resolve the rendition served for an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), cmd, flags)
			if err != nil {
				return err
			}
			defer s.Close()

			id := s.ref(args[0])
			var blob *editorbridge.Blob
			if variant != "" {
				blob, err = s.Service.GetAssetPreview(cmd.Context(), flags.principal, id, variant)
			} else {
				blob, err = s.Service.GetAsset(cmd.Context(), flags.principal, id)
			}
			if err != nil {
				return fmt.Errorf("resolve failed: %w", err)
			}
			printf(cmd.OutOrStdout(), "filename: %s\nmime-type: %s\nsize: %s\n",
				blob.Filename, blob.MimeType, editorbridge.FormatSize(blob.Length))

			if out == "" {
				return nil
			}
			data, err := blob.Bytes(cmd.Context())
			if err != nil {
				return fmt.Errorf("read rendition: %w", err)
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			printf(cmd.OutOrStdout(), "written to %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "", "write the rendition bytes to this file")
	cmd.Flags().StringVar(&variant, "variant", "", "preview variant (thumbnail, web) instead of the rendition")
	return cmd
}

// NewScanCommand checks that every asset under a folder resolves a rendition.
func NewScanCommand(flags *globalFlags) *cobra.Command {
	var kinds []string
	var dryRun, hidden bool
	var maxDepth int

	cmd := &cobra.Command{
		Use:   "scan [folder]",
		Short: "Check that every asset under a folder resolves a rendition",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), cmd, flags)
			if err != nil {
				return err
			}
			defer s.Close()

			opts := scan.Options{DryRun: dryRun, IncludeHidden: hidden, MaxDepth: maxDepth}
			if len(args) == 1 {
				opts.FolderID = s.ref(args[0])
			}
			for _, name := range kinds {
				k, ok := kindNames[strings.ToLower(name)]
				if !ok {
					return fmt.Errorf("%w: unknown kind %q", editorbridge.ErrInvalidRequest, name)
				}
				opts.Kinds = append(opts.Kinds, k)
			}
			check := &scan.RenditionCheck{Resolver: editorbridge.NewResolver(s.cfg.Rendition, s.cfg.Chains, nil, s.logger)}
			opts.Processor = check

			res, err := scan.New(s.Repository, flags.principal, s.logger).Scan(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("scan failed: %w", err)
			}

			if len(res.FailedIDs) > 0 {
				ids := make([]string, 0, len(res.FailedIDs))
				for id := range res.FailedIDs {
					ids = append(ids, id)
				}
				sort.Strings(ids)
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tERROR")
				for _, id := range ids {
					fmt.Fprintf(tw, "%s\t%v\n", id, res.FailedIDs[id])
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}

			var total int64
			for _, n := range check.Sizes() {
				total += n
			}
			printf(cmd.OutOrStdout(), "%d found, %d ok, %d failed in %d folder(s), %s resolved\n",
				res.TotalFound, res.TotalProcessed, res.TotalFailed, res.FoldersVisited, editorbridge.FormatSize(total))
			if res.TotalFailed > 0 {
				return fmt.Errorf("%d asset(s) without a rendition", res.TotalFailed)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&kinds, "kinds", "k", nil, "node kinds to check (file, picture, audio, video, other); all by default")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list matching nodes without resolving them")
	cmd.Flags().BoolVar(&hidden, "hidden", false, "include hidden nodes")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "folder levels to descend (0 for unlimited)")
	return cmd
}

var kindNames = map[string]editorbridge.NodeKind{
	"file":    editorbridge.KindFile,
	"picture": editorbridge.KindPicture,
	"audio":   editorbridge.KindAudio,
	"video":   editorbridge.KindVideo,
	"other":   editorbridge.KindOther,
}

func describeLock(l editorbridge.LockSnapshot) string {
	var parts []string
	if l.Acquired {
		parts = append(parts, "acquired")
	}
	if l.Available {
		parts = append(parts, "available")
	} else {
		parts = append(parts, "unavailable")
	}
	if l.Reason != "" {
		parts = append(parts, l.Reason)
	}
	return strings.Join(parts, ", ")
}
