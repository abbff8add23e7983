// Package chunker implements C4: splitting file content into overlapping,
// token-bounded chunks suitable for embedding and retrieval.
package chunker

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/amp-memory/amp/internal/fsutil"
)

// Config controls chunk sizing.
type Config struct {
	// TargetTokens is the approximate token budget per chunk.
	TargetTokens int
	// OverlapTokens is how many trailing tokens of a chunk are repeated at
	// the start of the next chunk, so a symbol split across a chunk
	// boundary still appears whole in at least one chunk.
	OverlapTokens int
}

// DefaultConfig returns amp's standard chunk sizing: 500 target tokens with
// a 50-token overlap.
func DefaultConfig() Config {
	return Config{TargetTokens: 500, OverlapTokens: 50}
}

// Chunk is one sliding-window slice of a file's content.
type Chunk struct {
	Index       int
	StartLine   int // 1-indexed, inclusive
	EndLine     int // 1-indexed, inclusive
	ByteStart   int
	ByteEnd     int
	Content     string
	TokenCount  int
	ContentHash string
}

// Chunker splits file content into Chunks using the cl100k_base token
// vocabulary (matching the tokenizer OpenAI's embedding models use).
type Chunker struct {
	cfg Config
	enc *tiktoken.Tiktoken
}

// New builds a Chunker with the given config.
func New(cfg Config) (*Chunker, error) {
	if cfg.TargetTokens <= 0 {
		cfg.TargetTokens = DefaultConfig().TargetTokens
	}
	if cfg.OverlapTokens < 0 || cfg.OverlapTokens >= cfg.TargetTokens {
		cfg.OverlapTokens = DefaultConfig().OverlapTokens
	}
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("load cl100k_base encoding; %w", err)
	}
	return &Chunker{cfg: cfg, enc: enc}, nil
}

type line struct {
	text      string
	tokens    int
	byteStart int
	byteEnd   int
}

// Chunk splits content into overlapping, token-bounded windows aligned on
// line boundaries.
func (c *Chunker) Chunk(content string) []Chunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	lines := c.splitLines(content)
	if len(lines) == 0 {
		return nil
	}

	var chunks []Chunk
	start := 0
	for start < len(lines) {
		end := start
		tokenSum := 0
		for end < len(lines) {
			next := tokenSum + lines[end].tokens
			if next > c.cfg.TargetTokens && end > start {
				break
			}
			tokenSum = next
			end++
		}

		chunkLines := lines[start:end]
		var sb strings.Builder
		for i, l := range chunkLines {
			if i > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(l.text)
		}
		text := sb.String()

		chunks = append(chunks, Chunk{
			Index:       len(chunks),
			StartLine:   start + 1,
			EndLine:     end,
			ByteStart:   chunkLines[0].byteStart,
			ByteEnd:     chunkLines[len(chunkLines)-1].byteEnd,
			Content:     text,
			TokenCount:  tokenSum,
			ContentHash: fsutil.HashBytes([]byte(text)),
		})

		if end >= len(lines) {
			break
		}

		// Walk back from `end` until we've covered OverlapTokens, so the
		// next window starts inside the tail of this one.
		back := end
		overlap := 0
		for back > start && overlap < c.cfg.OverlapTokens {
			back--
			overlap += lines[back].tokens
		}
		if back <= start {
			back = end
		}
		start = back
	}

	return chunks
}

func (c *Chunker) splitLines(content string) []line {
	var lines []line
	offset := 0
	for _, raw := range strings.Split(content, "\n") {
		lines = append(lines, line{
			text:      raw,
			tokens:    len(c.enc.Encode(raw, nil, nil)),
			byteStart: offset,
			byteEnd:   offset + len(raw),
		})
		offset += len(raw) + 1 // account for the stripped newline
	}
	return lines
}
