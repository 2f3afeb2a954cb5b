package worker

import "fmt"

// Kind tags the variant carried by a Message.
type Kind string

const (
	KindInit       Kind = "init"
	KindAudio      Kind = "audio"
	KindFeatures   Kind = "features"
	KindPrediction Kind = "prediction"
	KindError      Kind = "error"
	KindStatus     Kind = "status"
)

// Status values reported by KindStatus messages.
type Status string

const (
	StatusInitialized Status = "initialized"
	StatusInitFailed  Status = "init_failed"
)

// NoSong marks messages that are not tied to a particular song.
const NoSong = -1

// Message is the only value exchanged between a worker and its owner.
// Payload depends on Kind: PCM samples for KindAudio, a feature bundle for
// KindFeatures and a float64 for KindPrediction. Receivers must treat the
// payload as handed over and never mutate what they sent.
type Message struct {
	Kind      Kind
	SongID    int
	ModelName string
	Status    Status
	Err       error
	Payload   any
}

func (m Message) String() string {
	switch {
	case m.ModelName != "":
		return fmt.Sprintf("%s(song=%d model=%s)", m.Kind, m.SongID, m.ModelName)
	default:
		return fmt.Sprintf("%s(song=%d)", m.Kind, m.SongID)
	}
}

// ErrorMessage builds a KindError reply for songID.
func ErrorMessage(songID int, model string, err error) Message {
	return Message{Kind: KindError, SongID: songID, ModelName: model, Err: err}
}
