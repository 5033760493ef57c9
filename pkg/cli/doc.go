/*
Package cli provides helpers shared by the relay command.

Output Formatting:

Listing commands build a Table and hand it to a Formatter selected by the
--output flag. Text output is column-aligned; JSON output is an array of
objects keyed by lower-cased header; CSV output includes a header row.

	table := cli.NewTable("Kind", "Model")
	table.AddRow("gpt", "gpt-4o-mini")
	if err := cli.NewFormatter(cli.FormatText).FormatTo(os.Stdout, table); err != nil {
		return err
	}

Errors:

ConfigError and CommandError carry context for the user. ExitCode maps them
to the process exit status.

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
