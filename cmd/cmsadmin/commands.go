package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jrsteele09/go-cms-admin/cms"
	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "cmsadmin",
		Short: "Administer a headless CMS from the command line",
		Long: `cmsadmin manages content types, taxonomies, blueprints, routes, media
and entries through the CMS admin API.

Credentials and endpoints come from the environment:
  CMS_BASE_URL, CMS_USERNAME, CMS_PASSWORD, CMS_CLIENT_ID,
  CMS_ISSUER_URL or CMS_TOKEN_URL, CMS_REFRESH_TIMEOUT`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setupLogging()
		},
	}
	root.PersistentFlags().StringVarP(&a.output, "output", "o", a.output, "output format: json or yaml")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", a.logLevel, "log level: debug, info, warn, error")

	root.AddCommand(
		newVersionCommand(a),
		newWhoamiCommand(a),
		newContentTypesCommand(a),
		newTaxonomiesCommand(a),
		newBlueprintsCommand(a),
		newRoutesCommand(a),
		newMediaCommand(a),
		newEntriesCommand(a),
	)
	return root
}

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			displayAppname(a.out, a.cfg.GetAppName())
			fmt.Fprintf(a.out, "%s (%s)\n", version, a.cfg.GetEnv())
		},
	}
}

func newWhoamiCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in operator as the API sees them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			me, err := client.Me(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(me)
		},
	}
}

func listFlags(cmd *cobra.Command, opts *cms.ListOptions) {
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "number of items to skip")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of items (server default when 0)")
	cmd.Flags().StringVarP(&opts.Search, "search", "q", "", "free-text filter")
}

func listCommand[T any](a *app, fn func(*cms.Client, context.Context, cms.ListOptions) (*cms.Page[T], error)) *cobra.Command {
	var opts cms.ListOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			page, err := fn(client, cmd.Context(), opts)
			if err != nil {
				return err
			}
			return a.print(page)
		},
	}
	listFlags(cmd, &opts)
	return cmd
}

// idCommand runs fn with the single id argument and prints its result.
func idCommand[T any](a *app, use, short string, fn func(*cms.Client, context.Context, string) (T, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			out, err := fn(client, cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(out)
		},
	}
}

func deleteCommand(a *app, fn func(*cms.Client, context.Context, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			if err := fn(client, cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.errOut, "deleted %s\n", args[0])
			return nil
		},
	}
}

// inputCommand reads an In document from --file and passes it to fn along
// with any positional arguments.
func inputCommand[In, Out any](a *app, use, short string, args cobra.PositionalArgs, fn func(*cms.Client, context.Context, []string, In) (*Out, error)) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			var in In
			if err := readInput(file, &in); err != nil {
				return err
			}
			client, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			out, err := fn(client, cmd.Context(), args, in)
			if err != nil {
				return err
			}
			return a.print(out)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML or JSON input document (- for stdin)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newContentTypesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "content-types", Aliases: []string{"ct"}, Short: "Manage content types"}
	cmd.AddCommand(
		listCommand(a, func(c *cms.Client, ctx context.Context, o cms.ListOptions) (*cms.Page[cms.ContentType], error) {
			return c.ContentTypes.List(ctx, o)
		}),
		idCommand(a, "get", "Show a content type", func(c *cms.Client, ctx context.Context, id string) (*cms.ContentType, error) {
			return c.ContentTypes.Get(ctx, id)
		}),
		inputCommand(a, "create", "Create a content type", cobra.NoArgs, func(c *cms.Client, ctx context.Context, _ []string, in cms.ContentTypeInput) (*cms.ContentType, error) {
			return c.ContentTypes.Create(ctx, in)
		}),
		inputCommand(a, "update ID", "Replace a content type", cobra.ExactArgs(1), func(c *cms.Client, ctx context.Context, args []string, in cms.ContentTypeInput) (*cms.ContentType, error) {
			return c.ContentTypes.Update(ctx, args[0], in)
		}),
		deleteCommand(a, func(c *cms.Client, ctx context.Context, id string) error {
			return c.ContentTypes.Delete(ctx, id)
		}),
	)
	return cmd
}

func newTaxonomiesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "taxonomies", Aliases: []string{"tax"}, Short: "Manage taxonomies and their terms"}

	var termOpts cms.ListOptions
	terms := &cobra.Command{
		Use:   "terms TAXONOMY_ID",
		Short: "List the terms of a taxonomy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			page, err := client.Taxonomies.ListTerms(cmd.Context(), args[0], termOpts)
			if err != nil {
				return err
			}
			return a.print(page)
		},
	}
	listFlags(terms, &termOpts)

	cmd.AddCommand(
		listCommand(a, func(c *cms.Client, ctx context.Context, o cms.ListOptions) (*cms.Page[cms.Taxonomy], error) {
			return c.Taxonomies.List(ctx, o)
		}),
		idCommand(a, "get", "Show a taxonomy", func(c *cms.Client, ctx context.Context, id string) (*cms.Taxonomy, error) {
			return c.Taxonomies.Get(ctx, id)
		}),
		inputCommand(a, "create", "Create a taxonomy", cobra.NoArgs, func(c *cms.Client, ctx context.Context, _ []string, in cms.TaxonomyInput) (*cms.Taxonomy, error) {
			return c.Taxonomies.Create(ctx, in)
		}),
		inputCommand(a, "update ID", "Replace a taxonomy", cobra.ExactArgs(1), func(c *cms.Client, ctx context.Context, args []string, in cms.TaxonomyInput) (*cms.Taxonomy, error) {
			return c.Taxonomies.Update(ctx, args[0], in)
		}),
		deleteCommand(a, func(c *cms.Client, ctx context.Context, id string) error {
			return c.Taxonomies.Delete(ctx, id)
		}),
		terms,
		inputCommand(a, "add-term TAXONOMY_ID", "Add a term to a taxonomy", cobra.ExactArgs(1), func(c *cms.Client, ctx context.Context, args []string, in cms.TermInput) (*cms.Term, error) {
			return c.Taxonomies.CreateTerm(ctx, args[0], in)
		}),
	)
	return cmd
}

func newBlueprintsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "blueprints", Aliases: []string{"bp"}, Short: "Manage blueprints and embeds"}

	fields := &cobra.Command{
		Use:   "fields ID",
		Short: "Print the dotted path of every field in a blueprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			bp, err := client.Blueprints.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return bp.Walk(func(path string, f cms.Field) error {
				_, err := fmt.Fprintf(a.out, "%s\t%s\n", path, f.Type)
				return err
			})
		},
	}

	cmd.AddCommand(
		listCommand(a, func(c *cms.Client, ctx context.Context, o cms.ListOptions) (*cms.Page[cms.Blueprint], error) {
			return c.Blueprints.List(ctx, o)
		}),
		idCommand(a, "get", "Show a blueprint", func(c *cms.Client, ctx context.Context, id string) (*cms.Blueprint, error) {
			return c.Blueprints.Get(ctx, id)
		}),
		fields,
		inputCommand(a, "create", "Create a blueprint", cobra.NoArgs, func(c *cms.Client, ctx context.Context, _ []string, in cms.BlueprintInput) (*cms.Blueprint, error) {
			return c.Blueprints.Create(ctx, in)
		}),
		inputCommand(a, "update ID", "Replace a blueprint", cobra.ExactArgs(1), func(c *cms.Client, ctx context.Context, args []string, in cms.BlueprintInput) (*cms.Blueprint, error) {
			return c.Blueprints.Update(ctx, args[0], in)
		}),
		deleteCommand(a, func(c *cms.Client, ctx context.Context, id string) error {
			return c.Blueprints.Delete(ctx, id)
		}),
		idCommand(a, "embeds", "List the blueprints embedded into a blueprint", func(c *cms.Client, ctx context.Context, id string) ([]cms.Embed, error) {
			return c.Blueprints.ListEmbeds(ctx, id)
		}),
		idCommand(a, "embeddable", "List blueprints that can be embedded without a cycle", func(c *cms.Client, ctx context.Context, id string) ([]cms.Blueprint, error) {
			return c.Blueprints.GetEmbeddableBlueprints(ctx, id)
		}),
		inputCommand(a, "embed ID", "Embed another blueprint", cobra.ExactArgs(1), func(c *cms.Client, ctx context.Context, args []string, in cms.EmbedInput) (*cms.Embed, error) {
			return c.Blueprints.CreateEmbed(ctx, args[0], in)
		}),
		&cobra.Command{
			Use:   "unembed ID EMBED_ID",
			Short: "Remove an embed from a blueprint",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				client, err := a.connect(cmd.Context())
				if err != nil {
					return err
				}
				return client.Blueprints.DeleteEmbed(cmd.Context(), args[0], args[1])
			},
		},
	)
	return cmd
}

func newRoutesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "routes", Short: "Manage URL routes"}
	cmd.AddCommand(
		listCommand(a, func(c *cms.Client, ctx context.Context, o cms.ListOptions) (*cms.Page[cms.Route], error) {
			return c.Routes.List(ctx, o)
		}),
		idCommand(a, "get", "Show a route", func(c *cms.Client, ctx context.Context, id string) (*cms.Route, error) {
			return c.Routes.Get(ctx, id)
		}),
		inputCommand(a, "create", "Create a route", cobra.NoArgs, func(c *cms.Client, ctx context.Context, _ []string, in cms.RouteInput) (*cms.Route, error) {
			return c.Routes.Create(ctx, in)
		}),
		inputCommand(a, "update ID", "Replace a route", cobra.ExactArgs(1), func(c *cms.Client, ctx context.Context, args []string, in cms.RouteInput) (*cms.Route, error) {
			return c.Routes.Update(ctx, args[0], in)
		}),
		deleteCommand(a, func(c *cms.Client, ctx context.Context, id string) error {
			return c.Routes.Delete(ctx, id)
		}),
	)
	return cmd
}

func newMediaCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "media", Short: "Manage media files"}

	var alt string
	upload := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			client, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			media, err := client.Media.Upload(cmd.Context(), cms.MediaUpload{Filename: args[0], Alt: alt, Data: data})
			if err != nil {
				return err
			}
			return a.print(media)
		},
	}
	upload.Flags().StringVar(&alt, "alt", "", "alternative text")

	cmd.AddCommand(
		listCommand(a, func(c *cms.Client, ctx context.Context, o cms.ListOptions) (*cms.Page[cms.Media], error) {
			return c.Media.List(ctx, o)
		}),
		idCommand(a, "get", "Show a media file", func(c *cms.Client, ctx context.Context, id string) (*cms.Media, error) {
			return c.Media.Get(ctx, id)
		}),
		upload,
		deleteCommand(a, func(c *cms.Client, ctx context.Context, id string) error {
			return c.Media.Delete(ctx, id)
		}),
	)
	return cmd
}

func newEntriesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "entries", Short: "Manage content entries"}

	var opts cms.EntryListOptions
	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			opts.Status = cms.EntryStatus(status)
			page, err := client.Entries.List(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return a.print(page)
		},
	}
	listFlags(list, &opts.ListOptions)
	list.Flags().StringVar(&opts.ContentTypeID, "content-type", "", "only entries of this content type")
	list.Flags().StringVar(&status, "status", "", "only entries with this status: draft, published, archived")

	cmd.AddCommand(
		list,
		idCommand(a, "get", "Show an entry", func(c *cms.Client, ctx context.Context, id string) (*cms.Entry, error) {
			return c.Entries.Get(ctx, id)
		}),
		inputCommand(a, "create", "Create an entry (draft unless status is set)", cobra.NoArgs, func(c *cms.Client, ctx context.Context, _ []string, in cms.EntryInput) (*cms.Entry, error) {
			return c.Entries.Create(ctx, in)
		}),
		inputCommand(a, "update ID", "Replace an entry", cobra.ExactArgs(1), func(c *cms.Client, ctx context.Context, args []string, in cms.EntryInput) (*cms.Entry, error) {
			return c.Entries.Update(ctx, args[0], in)
		}),
		idCommand(a, "publish", "Publish an entry", func(c *cms.Client, ctx context.Context, id string) (*cms.Entry, error) {
			return c.Entries.Publish(ctx, id)
		}),
		deleteCommand(a, func(c *cms.Client, ctx context.Context, id string) error {
			return c.Entries.Delete(ctx, id)
		}),
	)
	return cmd
}
