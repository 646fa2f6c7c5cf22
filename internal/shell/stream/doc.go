// Package stream tees one raw byte stream into independent subscriber queues.
//
// A shell process has exactly one output channel, but several consumers need
// every byte of it: the live terminal renderer, the command result capture,
// and the background URL watcher. Sharing a single reader would let the
// slowest consumer stall the others, so the Broadcaster copies each chunk
// into a bounded queue per subscriber.
//
// Features:
//   - One reader goroutine per source
//   - Per-subscriber byte budget with drop-oldest overflow
//   - Drop counters for observability
//   - Context-aware reads
//   - io.EOF delivered to every subscriber once the source ends
//
// Example Usage:
//
//	b := stream.NewBroadcaster(ptmx, logger)
//	render := b.Subscribe("render", 1<<20)
//	b.Start()
//
//	for {
//		chunk, err := render.Next(ctx)
//		if err != nil {
//			break
//		}
//		os.Stdout.Write(chunk)
//	}
package stream
