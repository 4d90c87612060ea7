// Package presence implements the presence hub: per-connection inbound
// and outbound message handling, session-scoped broadcast fan-out, and
// the rate-limited cursor/viewport coalescing that keeps a busy
// presenter from flooding followers with one message per mouse event.
package presence

import "encoding/json"

// envelope carries just enough of an inbound message to dispatch on
// its discriminator before unmarshaling the rest of the payload.
type envelope struct {
	Type string `json:"type"`
	Seq  uint64 `json:"seq"`
}

// Inbound message payloads (client -> server). Field names mirror the
// lowercase-snake-case wire discriminators in msgType.
type (
	createSessionMsg struct {
		Seq     uint64 `json:"seq"`
		SlideID string `json:"slide_id"`
	}
	joinSessionMsg struct {
		Seq         uint64 `json:"seq"`
		SessionID   string `json:"session_id"`
		JoinSecret  string `json:"join_secret"`
		LastSeenRev uint64 `json:"last_seen_rev"`
	}
	presenterAuthMsg struct {
		Seq          uint64 `json:"seq"`
		PresenterKey string `json:"presenter_key"`
	}
	cursorUpdateMsg struct {
		Seq uint64  `json:"seq"`
		X   float64 `json:"x"`
		Y   float64 `json:"y"`
	}
	viewportUpdateMsg struct {
		Seq     uint64  `json:"seq"`
		CenterX float64 `json:"center_x"`
		CenterY float64 `json:"center_y"`
		Zoom    float64 `json:"zoom"`
	}
	layerUpdateMsg struct {
		Seq    uint64 `json:"seq"`
		Cells  bool   `json:"cells"`
		Tissue bool   `json:"tissue"`
	}
	snapToPresenterMsg struct {
		Seq uint64 `json:"seq"`
	}
	changeSlideMsg struct {
		Seq     uint64 `json:"seq"`
		SlideID string `json:"slide_id"`
	}
	pingMsg struct {
		Seq uint64 `json:"seq"`
	}
)

// msgType values, client -> server.
const (
	msgCreateSession    = "create_session"
	msgJoinSession      = "join_session"
	msgPresenterAuth    = "presenter_auth"
	msgCursorUpdate     = "cursor_update"
	msgViewportUpdate   = "viewport_update"
	msgLayerUpdate      = "layer_update"
	msgSnapToPresenter  = "snap_to_presenter"
	msgChangeSlide      = "change_slide"
	msgPing             = "ping"
)

// msgType values, server -> client.
const (
	msgSessionCreated    = "session_created"
	msgSessionJoined     = "session_joined"
	msgQosProfile        = "qos_profile"
	msgAck               = "ack"
	msgSessionError      = "session_error"
	msgSessionEnded      = "session_ended"
	msgParticipantJoined = "participant_joined"
	msgParticipantLeft   = "participant_left"
	msgPresenceDelta     = "presence_delta"
	msgPresenterViewport = "presenter_viewport"
	msgLayerState        = "layer_state"
	msgOverlayLoaded     = "overlay_loaded"
	msgSlideChanged      = "slide_changed"
	msgPong              = "pong"
)

// wireParticipant is the JSON projection of session.Participant sent to
// clients: ids and colors as strings, never the internal uuid.UUID type
// directly exposed to json tags elsewhere.
type wireParticipant struct {
	ID          string `json:"participant_id"`
	Name        string `json:"name"`
	Color       string `json:"color"`
	Role        string `json:"role"`
	ConnectedAt int64  `json:"connected_at"`
}

type wireViewport struct {
	CenterX   float64 `json:"center_x"`
	CenterY   float64 `json:"center_y"`
	Zoom      float64 `json:"zoom"`
	Timestamp int64   `json:"timestamp"`
}

type wireSlide struct {
	SlideID      string `json:"slide_id"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	TileSize     int    `json:"tile_size"`
	LevelCount   int    `json:"level_count"`
	TileURLTempl string `json:"tile_url_template"`
}

type sessionCreatedMsg struct {
	Type         string            `json:"type"`
	AckSeq       uint64            `json:"ack_seq"`
	ServerTS     int64             `json:"server_ts"`
	SessionID    string            `json:"session_id"`
	JoinSecret   string            `json:"join_secret"`
	PresenterKey string            `json:"presenter_key"`
	Rev          uint64            `json:"rev"`
	Self         wireParticipant   `json:"self"`
	Participants []wireParticipant `json:"participants"`
	Slide        wireSlide         `json:"slide"`
}

type sessionJoinedMsg struct {
	Type         string            `json:"type"`
	AckSeq       uint64            `json:"ack_seq"`
	ServerTS     int64             `json:"server_ts"`
	SessionID    string            `json:"session_id"`
	Rev          uint64            `json:"rev"`
	Self         wireParticipant   `json:"self"`
	Participants []wireParticipant `json:"participants"`
	Slide        wireSlide         `json:"slide"`
	Presenter    wireViewport      `json:"presenter_viewport"`
}

type qosProfileMsg struct {
	Type              string `json:"type"`
	CursorHz          int    `json:"cursor_hz"`
	ViewportHz        int    `json:"viewport_hz"`
	MailboxCapacity   int    `json:"mailbox_capacity"`
}

type ackMsg struct {
	Type   string `json:"type"`
	AckSeq uint64 `json:"ack_seq"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type sessionErrorMsg struct {
	Type    string `json:"type"`
	AckSeq  uint64 `json:"ack_seq"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type sessionEndedMsg struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type participantJoinedMsg struct {
	Type        string          `json:"type"`
	ServerTS    int64           `json:"server_ts"`
	Participant wireParticipant `json:"participant"`
}

type participantLeftMsg struct {
	Type          string `json:"type"`
	ServerTS      int64  `json:"server_ts"`
	ParticipantID string `json:"participant_id"`
	WasPresenter  bool   `json:"was_presenter"`
}

type cursorEntry struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type presenceDeltaMsg struct {
	Type     string                 `json:"type"`
	Changed  map[string]cursorEntry `json:"changed"`
	Removed  []string               `json:"removed,omitempty"`
	ServerTS int64                  `json:"server_ts"`
}

type presenterViewportMsg struct {
	Type     string  `json:"type"`
	CenterX  float64 `json:"center_x"`
	CenterY  float64 `json:"center_y"`
	Zoom     float64 `json:"zoom"`
	ServerTS int64   `json:"server_ts"`
}

type layerStateMsg struct {
	Type     string `json:"type"`
	Cells    bool   `json:"cells"`
	Tissue   bool   `json:"tissue"`
	ServerTS int64  `json:"server_ts"`
}

type overlayLoadedMsg struct {
	Type           string `json:"type"`
	OverlayID      string `json:"overlay_id"`
	ContentSHA256  string `json:"content_sha256"`
	CellCount      int    `json:"cell_count"`
	TileCount      int    `json:"tile_count"`
	ServerTS       int64  `json:"server_ts"`
}

type slideChangedMsg struct {
	Type     string    `json:"type"`
	Slide    wireSlide `json:"slide"`
	ServerTS int64     `json:"server_ts"`
}

type pongMsg struct {
	Type     string `json:"type"`
	ServerTS int64  `json:"server_ts"`
}

func marshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// Every outbound type here is a plain struct of strings, bools,
		// numbers, and maps thereof: Marshal cannot fail on them.
		panic("presence: unmarshalable outbound message: " + err.Error())
	}
	return b
}
