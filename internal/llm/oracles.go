package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"subfix/internal/glossary"
	"subfix/internal/memory"
	"subfix/internal/pairs"
	"subfix/internal/stats"
)

const extractionSystemPrompt = `You are a terminology extraction assistant for bilingual subtitles.
Given subtitle pairs, identify proper nouns and fixed terms whose translation must stay consistent across the whole file.

Respond with a JSON array only. Each element:
{"source": "...", "target": "...", "category": "...", "confidence": 0.0, "evidence_ids": [1, 2]}

Rules:
- category is one of: person, place, organization, title, acronym, unit, ship, project, law, other.
- confidence is your certainty in [0, 1] that source maps to target.
- evidence_ids lists the ids of pairs where the term appears.
- Do not propose terms already covered by the established glossary given in the input.
- Return [] when nothing qualifies.`

const compressionSystemPrompt = `You are a memory compression assistant for a subtitle translation pipeline.
You will receive a JSON memory state: an authoritative glossary, a learned glossary, style notes, and a context summary.

Rewrite it to fit the given token budget while losing as little as possible:
- Never remove or alter authoritative glossary entries.
- Keep the learned entries most likely to recur; drop the rest.
- Condense style_notes and summary, keeping concrete rules over generalities.

Respond with a single JSON object in the exact same shape as the input. No prose.`

// RefineBatch sends one batch of subtitle pairs for correction and decodes
// the returned pairs. Only the pairs the model chose to correct come back;
// matching them to the originals is the caller's job.
func (c *Client) RefineBatch(ctx context.Context, systemPrompt string, batch []pairs.Pair) ([]pairs.Pair, stats.Usage, error) {
	payload, err := pairs.MarshalWire(batch)
	if err != nil {
		return nil, stats.Usage{}, fmt.Errorf("refine batch: encode pairs: %w", err)
	}
	content, usage, err := c.Complete(ctx, systemPrompt, string(payload))
	if err != nil {
		return nil, usage, fmt.Errorf("refine batch: %w", err)
	}
	var raw json.RawMessage
	if err := DecodeModelJSON(content, &raw); err != nil {
		return nil, usage, fmt.Errorf("%w: refine batch: %w", ErrMalformed, err)
	}
	corrected, err := pairs.UnmarshalWire(raw)
	if err != nil {
		return nil, usage, fmt.Errorf("%w: refine batch: %w", ErrMalformed, err)
	}
	return corrected, usage, nil
}

// ExtractTerminology proposes glossary entries for one batch. The current
// memory state is included so the model can avoid re-proposing settled
// terms. Entries come back unfiltered; sanitization happens at merge time.
func (c *Client) ExtractTerminology(ctx context.Context, batch []pairs.Pair, state memory.State) ([]glossary.Entry, stats.Usage, error) {
	payload, err := pairs.MarshalWire(batch)
	if err != nil {
		return nil, stats.Usage{}, fmt.Errorf("extract terminology: encode pairs: %w", err)
	}
	var user strings.Builder
	known := append(append([]glossary.Entry(nil), state.Authoritative...), state.Learned...)
	if len(known) > 0 {
		user.WriteString("Established glossary (do not re-propose):\n")
		for _, e := range known {
			fmt.Fprintf(&user, "* %s -> %s\n", e.Source, e.Target)
		}
		user.WriteString("\n")
	}
	user.WriteString("Subtitle pairs:\n")
	user.Write(payload)

	content, usage, err := c.Complete(ctx, extractionSystemPrompt, user.String())
	if err != nil {
		return nil, usage, fmt.Errorf("extract terminology: %w", err)
	}
	var raw json.RawMessage
	if err := DecodeModelJSON(content, &raw); err != nil {
		return nil, usage, fmt.Errorf("%w: extract terminology: %w", ErrMalformed, err)
	}
	entries, err := glossary.DecodeEntries(raw)
	if err != nil {
		return nil, usage, fmt.Errorf("%w: extract terminology: %w", ErrMalformed, err)
	}
	return entries, usage, nil
}

type wireState struct {
	Authoritative []glossary.Entry `json:"authoritative"`
	Learned       []glossary.Entry `json:"learned"`
	StyleNotes    string           `json:"style_notes"`
	Summary       string           `json:"summary"`
}

// CompressMemory asks the model to shrink the memory state toward the token
// budget. The result is decoded but not validated; callers must run
// memory.Validate and fall back to the prior state when it fails.
func (c *Client) CompressMemory(ctx context.Context, state memory.State, budgetTokens int) (memory.State, stats.Usage, error) {
	encoded, err := json.Marshal(wireState{
		Authoritative: state.Authoritative,
		Learned:       state.Learned,
		StyleNotes:    state.StyleNotes,
		Summary:       state.Summary,
	})
	if err != nil {
		return memory.State{}, stats.Usage{}, fmt.Errorf("compress memory: encode state: %w", err)
	}
	user := fmt.Sprintf("Token budget: %d\n\nMemory state:\n%s", budgetTokens, encoded)

	content, usage, err := c.Complete(ctx, compressionSystemPrompt, user)
	if err != nil {
		return memory.State{}, usage, fmt.Errorf("compress memory: %w", err)
	}
	var decoded wireState
	if err := DecodeModelJSON(content, &decoded); err != nil {
		return memory.State{}, usage, fmt.Errorf("%w: compress memory: %w", ErrMalformed, err)
	}
	return memory.State{
		Authoritative: decoded.Authoritative,
		Learned:       decoded.Learned,
		StyleNotes:    decoded.StyleNotes,
		Summary:       decoded.Summary,
	}, usage, nil
}
