package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"fintrack/internal/importer"
)

type importFlags struct {
	email    string
	commit   bool
	fallback string
	mode     string
	mapping  importer.Mapping
}

func newImportCommand(g *globalFlags) *cobra.Command {
	f := &importFlags{}
	cmd := &cobra.Command{
		Use:   "import <file.csv|file.xlsx>",
		Short: "Preview or commit a bank statement",
		Long: "Classifies every row of a CSV or XLSX statement as income or expense.\n" +
			"Without --commit the preview is printed and nothing is written.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, g, f, args[0])
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.email, "email", "", "account email")
	fl.BoolVar(&f.commit, "commit", false, "write the classified rows")
	fl.StringVar(&f.mapping.AmountColumn, "amount-column", "", "header of the amount column (required)")
	fl.StringVar(&f.mapping.CategoryColumn, "category-column", "", "header of the category/details column (required)")
	fl.StringVar(&f.mapping.DateColumn, "date-column", "", "header of the date column")
	fl.StringVar(&f.mapping.TypeColumn, "type-column", "", "header of the debit/credit indicator column")
	fl.StringVar(&f.mode, "mode", "auto", "direction detection: sign, type or auto")
	fl.StringVar(&f.fallback, "fallback", "skip", "rows with unknown direction: skip, debit or credit")
	fl.StringVar(&f.mapping.DefaultCategory, "default-category", "", "category for imported expenses")
	fl.StringVar(&f.mapping.DefaultSource, "default-source", "", "source for imported income")
	fl.StringVar(&f.mapping.NameOverride, "name", "", "record name instead of the category text")
	fl.StringVar(&f.mapping.DescriptionOverride, "description", "", "description for every imported record")
	fl.BoolVar(&f.mapping.AutoCategorize, "auto-categorize", false, "guess categories from keyword rules")
	return cmd
}

func runImport(cmd *cobra.Command, g *globalFlags, f *importFlags, path string) error {
	if err := requireFlag("email", f.email); err != nil {
		return err
	}
	mapping := f.mapping
	var err error
	if mapping.Mode, err = importer.ParseDirectionMode(f.mode); err != nil {
		return err
	}
	if mapping.Fallback, err = importer.ParseFallbackPolicy(f.fallback); err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	table, err := importer.ReadTable(path, file)
	if err != nil {
		return err
	}

	a, err := g.openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	classifier, err := a.classifier()
	if err != nil {
		return err
	}
	rows, err := classifier.Preview(table, mapping)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !f.commit {
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ROW\tDATE\tDIRECTION\tAMOUNT\tCATEGORY")
		for _, r := range rows {
			amount := "-"
			if r.AmountOK {
				amount = r.Amount.StringFixed(2)
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", r.Index+1, r.Date, r.Direction, amount, r.Category)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(out, "%d rows previewed; rerun with --commit to import\n", len(rows))
		return nil
	}

	ctx := commandContext(cmd)
	account, err := a.account(ctx, f.email)
	if err != nil {
		return err
	}
	defer a.registry.Release(account)
	res := classifier.Commit(ctx, account, rows, mapping)
	fmt.Fprintf(out, "Imported %d rows, skipped %d, failed %d\n", res.Added, res.Skipped, res.Errors)
	for _, re := range res.RowErrors {
		fmt.Fprintf(out, "  row %d: %s\n", re.Index+1, re.Error)
	}
	return nil
}
