package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Ning0612/drivesync/internal/adapter"
	"github.com/Ning0612/drivesync/internal/domain"
)

var sheetCmd = &cobra.Command{
	Use:   "sheet",
	Short: "Work with Google Sheets ranges",
}

var (
	readOpts   adapter.ReadOptions
	readAsJSON bool
)

var sheetReadCmd = &cobra.Command{
	Use:   "read <spreadsheet-id> <range>",
	Short: "Print the values of a range",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		vr, err := svc.ReadRange(cmd.Context(), args[0], args[1], readOpts)
		if err != nil {
			return err
		}

		if readAsJSON {
			return json.NewEncoder(os.Stdout).Encode(vr.Values)
		}
		fmt.Println(dimColor(vr.Range))
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, row := range vr.Values {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = fmt.Sprint(v)
			}
			fmt.Fprintln(tw, strings.Join(cells, "\t"))
		}
		return tw.Flush()
	},
}

var (
	writeValues string
	writeInput  string
)

var sheetWriteCmd = &cobra.Command{
	Use:   "write <spreadsheet-id> <range>",
	Short: "Overwrite a range with a JSON array of rows",
	Long: `Overwrite a range with a JSON array of rows, e.g.
  drivesync sheet write <id> 'Sheet1!A1' --values '[["name","qty"],["apple",3]]'
Use --values - to read the rows from stdin.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		values, err := parseRows(writeValues)
		if err != nil {
			return err
		}

		svc, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		res, err := svc.WriteRange(cmd.Context(), args[0], domain.SheetRange{Range: args[1], Values: values},
			adapter.WriteOptions{ValueInputOption: strings.ToUpper(writeInput)})
		if err != nil {
			return err
		}
		fmt.Printf("%s %s (%d rows, %d columns, %d cells)\n", okColor("updated"),
			res.UpdatedRange, res.UpdatedRows, res.UpdatedColumns, res.UpdatedCells)
		return nil
	},
}

var sheetClearCmd = &cobra.Command{
	Use:   "clear <spreadsheet-id> <range>",
	Short: "Empty a range",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		cleared, err := svc.ClearRange(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Println(okColor("cleared"), cleared)
		return nil
	},
}

var infoOpts adapter.SpreadsheetOptions

var sheetInfoCmd = &cobra.Command{
	Use:   "info <spreadsheet-id>",
	Short: "Show spreadsheet and tab metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		ss, err := svc.Spreadsheet(cmd.Context(), args[0], infoOpts)
		if err != nil {
			return err
		}

		fmt.Printf("%s %s\n", ss.Title, dimColor(ss.URL))
		fmt.Printf("locale %s, time zone %s\n", ss.Locale, ss.TimeZone)
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tINDEX\tTITLE\tROWS\tCOLUMNS")
		for _, sh := range ss.Sheets {
			fmt.Fprintf(tw, "%d\t%d\t%s\t%d\t%d\n", sh.SheetID, sh.Index, sh.Title, sh.RowCount, sh.ColumnCount)
		}
		return tw.Flush()
	},
}

// parseRows decodes a JSON array of rows, or reads it from stdin for "-"
func parseRows(raw string) ([][]any, error) {
	data := []byte(raw)
	if raw == "-" {
		var err error
		if data, err = io.ReadAll(os.Stdin); err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
	}

	var rows [][]any
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: --values must be a JSON array of rows: %v", domain.ErrPrecondition, err)
	}
	return rows, nil
}

func init() {
	f := sheetReadCmd.Flags()
	f.StringVar(&readOpts.MajorDimension, "major-dimension", "", "ROWS or COLUMNS")
	f.StringVar(&readOpts.ValueRenderOption, "render", "", "FORMATTED_VALUE, UNFORMATTED_VALUE or FORMULA")
	f.StringVar(&readOpts.DateTimeRenderOption, "datetime-render", "", "SERIAL_NUMBER or FORMATTED_STRING")
	f.BoolVar(&readAsJSON, "json", false, "print the rows as JSON")

	sheetWriteCmd.Flags().StringVar(&writeValues, "values", "", "JSON array of rows, or - for stdin")
	sheetWriteCmd.Flags().StringVar(&writeInput, "input", "", "RAW or USER_ENTERED (default: sheets.value_input_option)")
	sheetWriteCmd.MarkFlagRequired("values")

	sheetInfoCmd.Flags().StringSliceVar(&infoOpts.Ranges, "ranges", nil, "limit to these ranges")
	sheetInfoCmd.Flags().BoolVar(&infoOpts.IncludeGridData, "grid", false, "include grid data")

	sheetCmd.AddCommand(sheetReadCmd, sheetWriteCmd, sheetClearCmd, sheetInfoCmd)
}
