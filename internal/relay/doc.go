// Package relay drives the vehicle's relay board through GPIO output lines.
//
// The board is wired active-low: driving a line LOW energises the relay
// (logical ON) and driving it HIGH releases it (logical OFF). Callers only
// ever deal in logical states; Board translates them to line levels.
//
//	board, err := relay.NewBoard(relay.NewCdevOpener("gpiochip0", "vehictl"), pins)
//	if err := board.Initialize(); err != nil {
//	    return err // fatal: the service must not start without its relays
//	}
//	defer board.Shutdown()
//
//	board.SetChannel(relay.Ignition, true)
//
// Writes are serialised per channel; the last write wins.
package relay
