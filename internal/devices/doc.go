// Package devices owns the device lifecycle: registering devices, tracking who
// currently holds each one, and keeping the assignment ledger consistent with
// that holder.
//
// All writes go through Service. Each create, update and delete runs inside a
// single store transaction that covers reference lookups, uniqueness checks,
// the device row and the ledger rows, so a failure at any step leaves nothing
// behind.
//
// The ledger is append-oriented. A device with a holder has exactly one open
// assignment (ReturnedAt == nil) naming that holder. Changing the holder
// closes the open assignment and opens a new one; clearing it only closes.
// Records are never deleted, and a device with any record cannot be deleted.
//
// Reads (GetDeviceDetails, ListDevices, ListAssignmentHistory,
// GetOpenAssignmentForUser) run outside writer transactions.
package devices
