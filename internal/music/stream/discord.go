package stream

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"moobot/internal/music/parsers"

	"github.com/bwmarrin/discordgo"
	"layeh.com/gopus"
)

// Encode reads 20ms PCM frames from r and emits opus packets on out until r
// ends or ctx is cancelled. A clean end of stream returns nil.
func Encode(ctx context.Context, r io.Reader, out chan<- []byte) error {
	encoder, err := gopus.NewEncoder(parsers.SampleRate, parsers.Channels, gopus.Audio)
	if err != nil {
		return fmt.Errorf("encoder error: %w", err)
	}

	pcmBuf := make([]byte, parsers.FrameSize*parsers.Channels*2)
	intBuf := make([]int16, parsers.FrameSize*parsers.Channels)

	for {
		if ctx.Err() != nil {
			return nil
		}

		if _, err := io.ReadFull(r, pcmBuf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}

		for i := range intBuf {
			intBuf[i] = int16(binary.LittleEndian.Uint16(pcmBuf[i*2 : i*2+2]))
		}

		opus, err := encoder.Encode(intBuf, parsers.FrameSize, len(pcmBuf))
		if err != nil {
			return fmt.Errorf("encode error: %w", err)
		}

		select {
		case out <- opus:
		case <-ctx.Done():
			return nil
		}
	}
}

// ToDiscord streams r to a voice connection, toggling the speaking state.
func ToDiscord(ctx context.Context, r io.Reader, vc *discordgo.VoiceConnection) error {
	if err := vc.Speaking(true); err != nil {
		return fmt.Errorf("speaking: %w", err)
	}
	defer vc.Speaking(false)

	return Encode(ctx, r, vc.OpusSend)
}
