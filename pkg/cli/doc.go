/*
Package cli holds helpers shared by the naumanni commands: typed command
and configuration errors, shutdown signal handling and result formatting.

Results that implement Tabular print as aligned columns or CSV:

	formatter := cli.NewFormatter(cli.FormatText)
	if err := formatter.FormatTo(os.Stdout, report); err != nil {
		return err
	}
*/
package cli
