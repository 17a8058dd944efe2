package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/nestmut/pkg/session"
	"github.com/mesh-intelligence/nestmut/pkg/tracking"
	"github.com/mesh-intelligence/nestmut/pkg/types"
)

func newDocCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doc",
		Short: "Create, inspect and edit documents",
	}
	cmd.AddCommand(
		newDocCreateCmd(a),
		newDocGetCmd(a),
		newDocListCmd(a),
		newDocDeleteCmd(a),
		newDocHistoryCmd(a),
		newDocSetCmd(a),
		newDocAppendCmd(a),
		newDocUnsetCmd(a),
	)
	return cmd
}

// coerce builds a detached root of kind from a decoded JSON value.
func coerce(kind tracking.Kind, schemaName string, value any) (*tracking.Root, error) {
	switch kind {
	case tracking.KindList:
		return tracking.CoerceList(value, nil)
	case tracking.KindMap:
		return tracking.CoerceMap(value, nil)
	}
	s, ok := tracking.SchemaByName(schemaName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", tracking.ErrSchemaUnavailable, schemaName)
	}
	return tracking.CoerceRecord(s, value, nil)
}

func newDocCreateCmd(a *app) *cobra.Command {
	var schemaName string
	cmd := &cobra.Command{
		Use:   "create <name> <list|map|record> <json>",
		Short: "Create a document",
		Example: `  nestmut doc create todo list '["milk"]'
  nestmut doc create prefs map '{"theme":"dark"}'
  nestmut doc create ada record '{"name":"Ada"}' --schema Person`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := tracking.ParseKind(args[1])
			if err != nil {
				return classify(err)
			}
			value, err := parseValue(args[2])
			if err != nil {
				return classify(err)
			}
			return a.withSession(func(_ types.HistoryTable, sess *session.Session) error {
				root, err := coerce(kind, schemaName, value)
				if err != nil {
					return err
				}
				id, _, err := sess.Create(args[0], root)
				if err != nil {
					return err
				}
				doc, _ := sess.Document(id)
				return a.write(cmd.OutOrStdout(), doc)
			})
		},
	}
	cmd.Flags().StringVar(&schemaName, "schema", "", "record schema name (record documents)")
	return cmd
}

func newDocGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id> [path]",
		Short: "Print a document, or the value at a dotted path inside it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(func(docs types.HistoryTable, sess *session.Session) error {
				if len(args) == 1 {
					doc, err := docs.Get(args[0])
					if err != nil {
						return err
					}
					return a.write(cmd.OutOrStdout(), doc)
				}
				root, err := sess.Load(args[0])
				if err != nil {
					return err
				}
				v, err := resolve(root.Node(), splitPath(args[1]))
				if err != nil {
					return err
				}
				return a.write(cmd.OutOrStdout(), tracking.Plain(v))
			})
		},
	}
}

func newDocListCmd(a *app) *cobra.Command {
	var name, kind string
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := types.Filter{}
			if name != "" {
				filter[types.FilterName] = name
			}
			if kind != "" {
				filter[types.FilterKind] = kind
			}
			if limit != 0 {
				filter[types.FilterLimit] = limit
			}
			if offset != 0 {
				filter[types.FilterOffset] = offset
			}
			return a.withSession(func(docs types.HistoryTable, _ *session.Session) error {
				found, err := docs.Fetch(filter)
				if err != nil {
					return err
				}
				rows := make([]summary, 0, len(found))
				for _, v := range found {
					rows = append(rows, summarize(v.(*types.Document)))
				}
				return a.write(cmd.OutOrStdout(), rows)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "only the document with this name")
	cmd.Flags().StringVar(&kind, "kind", "", "only documents of this kind (list, map, record)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of documents")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of documents to skip")
	return cmd
}

func newDocDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a document and its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(func(_ types.HistoryTable, sess *session.Session) error {
				if err := sess.Delete(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func newDocHistoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history <id>",
		Short: "Print the saved versions of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(func(docs types.HistoryTable, _ *session.Session) error {
				if _, err := docs.Get(args[0]); err != nil {
					return err
				}
				entries, err := docs.FetchHistory(args[0])
				if err != nil {
					return err
				}
				return a.write(cmd.OutOrStdout(), entries)
			})
		},
	}
}

// mutate loads a document, applies fn to its tree and commits when fn
// changed it. The resulting document is printed either way.
func (a *app) mutate(cmd *cobra.Command, id string, fn func(root *tracking.Root) error) error {
	return a.withSession(func(_ types.HistoryTable, sess *session.Session) error {
		root, err := sess.Load(id)
		if err != nil {
			return err
		}
		if err := fn(root); err != nil {
			return err
		}
		if root.Dirty() {
			if _, err := sess.Commit(); err != nil {
				return err
			}
		} else {
			fmt.Fprintln(cmd.ErrOrStderr(), "unchanged")
		}
		doc, _ := sess.Document(id)
		return a.write(cmd.OutOrStdout(), doc)
	})
}

func newDocSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "set <id> <path> <json>",
		Short:   "Set the value at a dotted path",
		Example: `  nestmut doc set 0190... home.city '"Paris"'`,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parseValue(args[2])
			if err != nil {
				return classify(err)
			}
			return a.mutate(cmd, args[0], func(root *tracking.Root) error {
				return setPath(root.Node(), args[1], value)
			})
		},
	}
}

func newDocAppendCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "append <id> <path> <json>",
		Short: "Append a value to the list at a dotted path (\".\" for the document itself)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parseValue(args[2])
			if err != nil {
				return classify(err)
			}
			return a.mutate(cmd, args[0], func(root *tracking.Root) error {
				return appendPath(root.Node(), args[1], value)
			})
		},
	}
}

func newDocUnsetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unset <id> <path>",
		Short: "Remove a key or element, or clear a record field",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.mutate(cmd, args[0], func(root *tracking.Root) error {
				return unsetPath(root.Node(), args[1])
			})
		},
	}
}
