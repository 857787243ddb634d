package protocol

// Playback command names accepted by POST /command. The set is closed:
// anything else is rejected with INVALID_COMMAND before reaching the view.
const (
	CmdPlayPause      = "playPause"
	CmdPlay           = "play"
	CmdPause          = "pause"
	CmdVolumeUp       = "volumeUp"
	CmdVolumeDown     = "volumeDown"
	CmdSetVolume      = "setVolume"
	CmdMute           = "mute"
	CmdUnmute         = "unmute"
	CmdSeekTo         = "seekTo"
	CmdNext           = "next"
	CmdPrevious       = "previous"
	CmdPlayQueueIndex = "playQueueIndex"
	CmdToggleLike     = "toggleLike"
	CmdToggleDislike  = "toggleDislike"
	CmdRepeatMode     = "repeatMode"
	CmdShuffle        = "shuffle"
)
