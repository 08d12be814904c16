package services

import (
  "strings"
)

const (
  DefaultChunkMaxTokens     = 512
  DefaultChunkOverlapTokens = 128
)

// Chunker splits document text into overlapping windows of
// whitespace-delimited tokens. Chunks are cut from the original text so
// formatting inside a chunk is preserved.
type Chunker struct {
  maxTokens     int
  overlapTokens int
}

func NewChunker(maxTokens, overlapTokens int) *Chunker {
  if maxTokens <= 0 {
    maxTokens = DefaultChunkMaxTokens
  }
  if overlapTokens < 0 {
    overlapTokens = DefaultChunkOverlapTokens
  }
  if overlapTokens >= maxTokens {
    overlapTokens = maxTokens / 4
  }
  return &Chunker{maxTokens: maxTokens, overlapTokens: overlapTokens}
}

type tokenSpan struct {
  start int
  end   int
}

func tokenSpans(text string) []tokenSpan {
  spans := make([]tokenSpan, 0, len(text)/6)
  inToken := false
  start := 0
  for i, r := range text {
    isSpace := r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
    if !inToken && !isSpace {
      inToken = true
      start = i
    } else if inToken && isSpace {
      spans = append(spans, tokenSpan{start: start, end: i})
      inToken = false
    }
  }
  if inToken {
    spans = append(spans, tokenSpan{start: start, end: len(text)})
  }
  return spans
}

func (c *Chunker) Chunk(text string) []string {
  spans := tokenSpans(text)
  if len(spans) == 0 {
    return nil
  }
  if len(spans) <= c.maxTokens {
    return []string{text[spans[0].start:spans[len(spans)-1].end]}
  }

  step := c.maxTokens - c.overlapTokens
  if step < 1 {
    step = 1
  }

  var chunks []string
  for start := 0; start < len(spans); start += step {
    end := start + c.maxTokens
    last := end >= len(spans)
    if last {
      end = len(spans)
    }
    chunk := text[spans[start].start:spans[end-1].end]
    if !last && c.overlapTokens > 0 {
      // The tail overlap region reappears in the next window, so the cut
      // can safely move back to a natural boundary inside it.
      tailStart := spans[end-c.overlapTokens].start - spans[start].start
      if cut := findBreakPoint(chunk, tailStart); cut > 0 {
        chunk = chunk[:cut]
      }
    }
    chunks = append(chunks, chunk)
    if last {
      break
    }
  }
  return chunks
}

// findBreakPoint looks for the best cut position at or after from,
// preferring paragraph breaks, then line breaks, then sentence ends, then
// commas. Returns 0 when no boundary exists in the tail.
func findBreakPoint(chunk string, from int) int {
  if from <= 0 || from >= len(chunk) {
    return 0
  }
  tail := chunk[from:]

  if idx := strings.LastIndex(tail, "\n\n"); idx >= 0 {
    return from + idx
  }
  if idx := strings.LastIndex(tail, "\n"); idx >= 0 {
    return from + idx
  }
  best := -1
  for _, sep := range []string{". ", "! ", "? "} {
    if idx := strings.LastIndex(tail, sep); idx > best {
      best = idx + 1
    }
  }
  if best > 0 {
    return from + best
  }
  if idx := strings.LastIndex(tail, ", "); idx >= 0 {
    return from + idx + 1
  }
  return 0
}
