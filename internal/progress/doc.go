// Package progress renders a turbodl download's progress to a terminal.
//
// Reporter implements events.Handler and is wired up as an ordinary
// subscriber on a turbodl.Session; it has no knowledge of the session
// itself, only the event stream it emits.
//
// # Usage
//
//	reporter := progress.NewReporter(os.Stdout, 0)
//	sess, _ := turbodl.New(cfg, reporter)
//	sess.Start(ctx)
//
// # Output Format
//
//	[turbodl] Downloading: https://example.com/file.tar.gz
//	[turbodl] Total size: 2.5 TB | Chunks: 160
//	[turbodl] Progress: 45.2% | 1.1 TB / 2.5 TB | Speed: 1.2 GB/s | ETA: 18m 32s
//	[turbodl] Chunks: 72 completed | 4 in-progress | 84 pending
package progress
