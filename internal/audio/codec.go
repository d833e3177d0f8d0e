package audio

import "fmt"

type Codec string

const (
	CodecPCM      Codec = "pcm"
	CodecG711Ulaw Codec = "g711_ulaw"
	CodecG711Alaw Codec = "g711_alaw"
	// CodecOpus packets carry inter-frame decoder state and so cannot go
	// through the stateless Decode path below; a session holding an Opus
	// stream constructs a persistent *OpusDecoder instead (see Ingress).
	CodecOpus Codec = "opus"
)

// Decode converts encoded audio bytes to float32 PCM samples normalized to [-1, 1].
// Returns samples and the sample rate.
func Decode(data []byte, codec Codec, sampleRate int) ([]float32, int, error) {
	if codec == CodecPCM {
		return decodePCM(data), sampleRate, nil
	}

	if codec == CodecG711Ulaw {
		return decodeG711Ulaw(data), 8000, nil
	}

	if codec == CodecG711Alaw {
		return decodeG711Alaw(data), 8000, nil
	}

	if codec == CodecOpus {
		return nil, 0, fmt.Errorf("codec opus requires a stateful OpusDecoder, not Decode")
	}

	return nil, 0, fmt.Errorf("unsupported codec: %s", codec)
}
