// Package registration binds one authorised vehicle to one device.
//
// The binding is a single JSON record on disk. Register creates or refreshes
// it, Verify checks a device against it, Status reports it with the device
// ID masked, and Reset removes it.
//
// A record that cannot be parsed is treated as absent by Register (and
// replaced) but reported as an internal error by Verify. Reset removes it
// like any other record.
//
// Within one process every load-modify-save cycle is serialised. Two
// processes sharing the same store file are not coordinated.
package registration
