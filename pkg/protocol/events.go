package protocol

// Realtime event names pushed to authenticated companion connections.
const (
	EventStateUpdate     = "state-update"
	EventPlaylistCreated = "playlist-created"
	EventPlaylistDeleted = "playlist-deleted"
)
