package app

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/openflow/datasync/pkg/querykeys"
)

// NewKeymapCommand creates the keymap command, which prints the
// effective entity-to-cache-key table.
func (a *App) NewKeymapCommand() *cobra.Command {
	var resolve string

	cmd := &cobra.Command{
		Use:   "keymap",
		Short: "Print the entity-to-cache-key mapping table",
		Long: `Keymap prints the cache key prefixes invalidated for each entity type,
after merging the built-in defaults with the optional keymap file.
With --resolve it prints the prefixes for a single entity, including
the identity fallback applied to unmapped entity types.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			keys, err := a.loadKeymap()
			if err != nil {
				return err
			}

			if resolve != "" {
				prefixes := keys.Resolve(resolve)
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(prefixes, ", "))
				return nil
			}

			return printKeymap(cmd, keys)
		},
	}

	cmd.Flags().StringVar(&a.config.KeymapFile, "keymap", a.config.KeymapFile, "YAML file with extra entity-to-key mappings")
	cmd.Flags().StringVar(&resolve, "resolve", "", "print the prefixes for a single entity type")

	return cmd
}

func printKeymap(cmd *cobra.Command, keys querykeys.Map) error {
	entities := make([]string, 0, len(keys))
	for entity := range keys {
		entities = append(entities, entity)
	}
	sort.Strings(entities)

	// camelCase entity names read better as display titles
	title := cases.Title(language.English)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ENTITY\tNAME\tCACHE KEY PREFIXES")
	for _, entity := range entities {
		fmt.Fprintf(w, "%s\t%s\t%s\n", entity, title.String(entity), strings.Join(keys[entity], ", "))
	}
	return w.Flush()
}
