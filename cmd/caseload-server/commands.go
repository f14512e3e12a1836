package main

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/caseload/internal/config"
	"github.com/ehr/caseload/internal/domain/caseload"
)

// catalogPath prefers the --catalog flag, then CATALOG_PATH.
func catalogPath(cmd *cobra.Command) (string, error) {
	path, _ := cmd.Flags().GetString("catalog")
	if path != "" {
		return path, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", err
	}
	return cfg.CatalogPath, nil
}

func loadCatalog(cmd *cobra.Command) (*caseload.Catalog, error) {
	path, err := catalogPath(cmd)
	if err != nil {
		return nil, err
	}
	return caseload.LoadCatalogFile(path)
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the caseload query catalog",
	}
	cmd.PersistentFlags().String("catalog", "", "Catalog file (.yaml, .yml or .toml); built-in catalog when empty")

	// catalog validate
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate every template, sort query and category",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadCatalog(cmd)
			if err != nil {
				return fmt.Errorf("catalog is invalid: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog ok: %d search queries, %d categories\n",
				len(c.SearchQueries()), len(c.Categories()))
			return nil
		},
	}
	cmd.AddCommand(validateCmd)

	// catalog categories
	categoriesCmd := &cobra.Command{
		Use:   "categories",
		Short: "List the sort categories clients may request",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadCatalog(cmd)
			if err != nil {
				return err
			}
			for _, name := range c.Categories() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
	cmd.AddCommand(categoriesCmd)

	return cmd
}

// composeCmd prints the SQL and bound values of a listing without touching a
// database.
func composeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compose <search-query>",
		Short: "Compose a caseload listing and print its SQL and parameters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			dialectName, _ := flags.GetString("dialect")
			params, _ := flags.GetStringArray("param")
			sortParams, _ := flags.GetStringArray("sort-param")
			category, _ := flags.GetString("category")
			dirFlag, _ := flags.GetString("dir")
			page, _ := flags.GetInt("page")
			pageSize, _ := flags.GetInt("page-size")

			c, err := loadCatalog(cmd)
			if err != nil {
				return err
			}
			dialect, err := caseload.DialectByName(dialectName)
			if err != nil {
				return err
			}
			cat, err := c.Category(category)
			if err != nil {
				return err
			}
			dir, err := caseload.ParseSortDirection(dirFlag)
			if err != nil {
				return err
			}

			svc := caseload.NewService(c, dialect, nil, zerolog.Nop(), nil)
			stmt, values, err := svc.PrepareList(caseload.ListRequest{
				SearchQuery:  args[0],
				SearchParams: params,
				SortParams:   sortParams,
				Category:     cat,
				Direction:    dir,
				Page:         page,
				PageSize:     pageSize,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, stmt.SQL)
			for i, v := range values {
				fmt.Fprintf(out, "%s = %s\n", dialect.Placeholder(i+1), formatValue(v))
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.String("catalog", "", "Catalog file; built-in catalog when empty")
	flags.String("dialect", "postgres", "SQL dialect: postgres or sqlite")
	flags.StringArray("param", nil, "Search parameter (repeatable)")
	flags.StringArray("sort-param", nil, "Sort query parameter (repeatable)")
	flags.String("category", "", "Sort category (default demographic)")
	flags.String("dir", "ASC", "Sort direction: ASC or DESC")
	flags.Int("page", 0, "Zero-based page number")
	flags.Int("page-size", 20, "Rows per page")
	return cmd
}

func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	}
	return fmt.Sprint(v)
}
