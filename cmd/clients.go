package main

import (
	"time"

	"github.com/sells-group/osmatch-cli/internal/config"
	"github.com/sells-group/osmatch-cli/internal/pipeline"
	"github.com/sells-group/osmatch-cli/pkg/osmatch"
)

// newMatchClient builds the OS Places match client from configuration.
func newMatchClient(c *config.Config) osmatch.Client {
	return osmatch.NewClient(
		osmatch.WithBaseURL(c.OSMatch.BaseURL),
		osmatch.WithMaxResults(c.OSMatch.MaxResults),
		osmatch.WithTimeout(time.Duration(c.OSMatch.TimeoutSecs)*time.Second),
	)
}

// fileOptions returns the delimiter and encoding shared by input and output.
func fileOptions(c *config.Config) pipeline.ReadOptions {
	return pipeline.ReadOptions{
		Delimiter: c.Input.DelimiterRune(),
		Encoding:  c.Input.Encoding,
	}
}
