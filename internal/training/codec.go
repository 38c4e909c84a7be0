package training

import (
	"encoding/json"
	"fmt"

	"github.com/mikey/mail-classifier/internal/core"
	"github.com/mikey/mail-classifier/internal/features"
	"github.com/mikey/mail-classifier/internal/learners"
)

// payloadVersion guards against decoding payloads written by an
// incompatible build.
const payloadVersion = 1

type snapshotPayload struct {
	Version   int                 `json:"version"`
	Extractor *features.Extractor `json:"extractor"`
	Learners  []learnerPayload    `json:"learners"`
}

type learnerPayload struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// EncodeSnapshotPayload serializes a snapshot's extractor and learners for
// durable storage. Metadata (version, accuracy) is stored in columns, not
// in the payload.
func EncodeSnapshotPayload(snapshot *core.ModelSnapshot) ([]byte, error) {
	extractor, ok := snapshot.Extractor.(*features.Extractor)
	if !ok {
		return nil, fmt.Errorf("unsupported extractor type %T", snapshot.Extractor)
	}
	payload := snapshotPayload{Version: payloadVersion, Extractor: extractor}
	for _, learner := range snapshot.Learners {
		data, err := json.Marshal(learner)
		if err != nil {
			return nil, fmt.Errorf("encode learner %s: %w", learner.Name(), err)
		}
		payload.Learners = append(payload.Learners, learnerPayload{Kind: learner.Name(), Data: data})
	}
	return json.Marshal(payload)
}

// DecodeSnapshotPayload reconstructs the extractor and learners from a
// stored payload.
func DecodeSnapshotPayload(data []byte) (core.FeatureExtractor, []core.BaseLearner, error) {
	var payload snapshotPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, nil, fmt.Errorf("decode snapshot payload: %w", err)
	}
	if payload.Version != payloadVersion {
		return nil, nil, fmt.Errorf("unsupported snapshot payload version %d", payload.Version)
	}
	if payload.Extractor == nil || payload.Extractor.Vocab == nil {
		return nil, nil, fmt.Errorf("snapshot payload missing extractor")
	}

	models := make([]core.BaseLearner, 0, len(payload.Learners))
	for _, lp := range payload.Learners {
		var learner core.BaseLearner
		switch lp.Kind {
		case "forest":
			learner = &learners.Forest{}
		case "boosted":
			learner = &learners.Boosted{}
		case "linear":
			learner = &learners.Linear{}
		default:
			return nil, nil, fmt.Errorf("unknown learner kind %q", lp.Kind)
		}
		if err := json.Unmarshal(lp.Data, learner); err != nil {
			return nil, nil, fmt.Errorf("decode learner %s: %w", lp.Kind, err)
		}
		models = append(models, learner)
	}
	if len(models) == 0 {
		return nil, nil, fmt.Errorf("snapshot payload holds no learners")
	}
	return payload.Extractor, models, nil
}
