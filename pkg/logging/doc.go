// Package logging configures the log/slog loggers used by hashserver.
//
// Components accept a *slog.Logger through an option and fall back to Nop()
// when none is given:
//
//	log := logging.New(logging.Config{
//	    Level:  logging.ParseLevel("debug"),
//	    Format: logging.FormatJSON,
//	})
//	srv, err := hashserver.New(8080, pages, hashserver.WithLogger(log))
//
// Config.Mirror duplicates every record to a second writer, which the CLI
// uses for --log-file.
package logging
