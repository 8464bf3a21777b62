package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sarchlab/pgtrace/datarecording"
)

var reportCmd = &cobra.Command{
	Use:   "report <database>",
	Short: "Print the events recorded with --record.",
	Long: `report reads a database written with --record. Without --table, ` +
		`it lists the tables and their row counts. With --table, it prints ` +
		`the rows of that table, optionally filtered by --pid.`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().String("table", "", "Table to print")
	reportCmd.Flags().Uint32("pid", 0, "Only print rows of this process")
	reportCmd.Flags().Int("limit", 50, "Maximum number of rows, 0 for all")

	rootCmd.AddCommand(reportCmd)
}

func recordedTables() map[string]any {
	return map[string]any{
		datarecording.TableRunInfo:       datarecording.RunInfo{},
		datarecording.TableGrowEvents:    datarecording.GrowEntry{},
		datarecording.TableFaultEvents:   datarecording.FaultEntry{},
		datarecording.TableAccessReports: datarecording.AccessReportEntry{},
		datarecording.TableMappings:      datarecording.MappingEntry{},
		datarecording.TableReleases:      datarecording.ReleaseEntry{},
	}
}

func runReport(cmd *cobra.Command, args []string) error {
	reader, err := datarecording.NewReader(args[0])
	if err != nil {
		return err
	}
	defer reader.Close()

	tables := recordedTables()
	for name, sample := range tables {
		reader.MapTable(name, sample)
	}

	tableName, _ := cmd.Flags().GetString("table")
	if tableName == "" {
		return listRecordedTables(cmd, reader, tables)
	}

	if _, known := tables[tableName]; !known {
		return fmt.Errorf("unknown table %s", tableName)
	}

	params := datarecording.QueryParams{OrderBy: "rowid"}
	params.Limit, _ = cmd.Flags().GetInt("limit")

	if cmd.Flags().Changed("pid") && tableName != datarecording.TableRunInfo {
		pid, _ := cmd.Flags().GetUint32("pid")
		params.Where = "PID = ?"
		params.Args = []any{pid}
	}

	rows, total, err := reader.Query(cmd.Context(), tableName, params)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, row := range rows {
		fmt.Fprintf(out, "%+v\n", row)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d rows\n", len(rows), total)

	return nil
}

func listRecordedTables(
	cmd *cobra.Command,
	reader datarecording.DataReader,
	known map[string]any,
) error {
	names, err := reader.ListTables(cmd.Context())
	if err != nil {
		return err
	}

	sort.Strings(names)

	for _, name := range names {
		if _, ok := known[name]; !ok {
			continue
		}

		_, total, err := reader.Query(cmd.Context(), name,
			datarecording.QueryParams{Limit: 1})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%-16s %d\n", name, total)
	}

	return nil
}
