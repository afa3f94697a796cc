package chathub

// RoomLocksHeld exposes the number of rooms with a publish in flight.
func (m *ManagerService) RoomLocksHeld() int {
	return m.roomLocks.Len()
}
