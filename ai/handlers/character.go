package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/queryon/queryon/ai/classify"
	"github.com/queryon/queryon/ai/core/llm"
	"github.com/queryon/queryon/ai/flow"
	"github.com/queryon/queryon/store"
)

var (
	extractPattern  = regexp.MustCompile(`(?s)<extract>\s*(\{.*?\})\s*</extract>`)
	responsePattern = regexp.MustCompile(`(?s)<response>(.*?)</response>`)

	// Digit runs, times and dates hint that an answer carries intake data
	// even outside an active flow.
	passiveSignalPattern = regexp.MustCompile(`\d{1,2}[:.]\d{2}|\d{1,2}[./]\d{1,2}([./]\d{2,4})?|\d{10,}`)
)

// Folded forms a customer uses to pass an optional question.
var skipWords = map[string]bool{
	"gec": true, "gecelim": true, "bosver": true, "yok": true,
	"istemiyorum": true, "pas": true, "skip": true, "atla": true,
	"fark etmez": true,
}

var passiveKeywords = []string{"randevu", "rezervasyon", "siparis", "ertele"}

const defaultPersona = "Sen küçük bir işletmenin samimi ve yardımsever asistanısın. Kısa ve doğal Türkçe yanıtlar verirsin."

const extractionSystemPrompt = "Müşteri mesajından randevu veya sipariş bilgisi çıkarırsın. " +
	"Yalnızca tek satır JSON ile yanıt verirsin, başka hiçbir şey yazmazsın."

// CharacterHandler runs the always-on persona. During an active mode flow it
// drives field collection through the extract/response contract; outside a
// flow it chats freely and opportunistically captures intake details.
type CharacterHandler struct {
	llm          llm.Service
	persona      string
	restrictions string
	modeCfg      *flow.ModeConfig
}

// NewCharacterHandler builds the persona handler. persona and restrictions
// come from the orchestrator config; modeCfg may be nil when no flows are
// configured.
func NewCharacterHandler(svc llm.Service, persona, restrictions string, modeCfg *flow.ModeConfig) *CharacterHandler {
	if modeCfg == nil {
		modeCfg = &flow.ModeConfig{}
	}
	return &CharacterHandler{llm: svc, persona: persona, restrictions: restrictions, modeCfg: modeCfg}
}

func (h *CharacterHandler) Handle(ctx context.Context, req *Request) (*Result, error) {
	result := &Result{
		Query:          req.Query,
		Intent:         classify.IntentCharacter,
		Classification: req.Classification,
	}
	if h.llm == nil {
		return result, nil
	}

	opts := &flow.ContextOptions{AvailabilitySlots: req.AvailabilitySlots}
	mode, modeCtx := flow.ComputeModeContext(h.modeCfg, req.FlowState, opts)
	if mode != "" {
		return h.flowTurn(ctx, req, result, mode, modeCtx)
	}
	return h.freeTurn(ctx, req, result, modeCtx)
}

// flowTurn handles one collection turn of an active mode.
func (h *CharacterHandler) flowTurn(ctx context.Context, req *Request, result *Result, mode, modeCtx string) (*Result, error) {
	fields := h.modeCfg.FieldsForMode(mode)
	collected := collectedStrings(req.FlowState, mode)

	// Unambiguous single answers skip the LLM entirely.
	if pending, required, ok := pendingField(fields, collected); ok {
		query := strings.TrimSpace(req.Query)
		if !required && isSkipWord(query) {
			return h.fastCapture(req, result, mode, fields, pending.Key, flow.Skip), nil
		}
		if pending.Validation != "" && len(strings.Fields(query)) == 1 {
			if canonical, valid := flow.Validate(pending.Validation, query); valid {
				return h.fastCapture(req, result, mode, fields, pending.Key, canonical), nil
			}
		}
	}

	messages := make([]llm.Message, 0, len(req.History)+2)
	messages = append(messages, llm.SystemPrompt(h.buildFlowSystemPrompt(modeCtx)))
	messages = append(messages, req.History...)
	messages = append(messages, llm.UserMessage(req.Query))

	reply, _, err := h.llm.Chat(ctx, messages)
	if err != nil {
		slog.Warn("character flow turn failed", "error", err)
		result.Metadata.Error = err.Error()
		return result, nil
	}

	extract, response, hasResponseTag := parseCharacterReply(reply)
	outcome := h.mergeExtract(req.FlowState, mode, fields, extract)
	if outcome.cancelled || outcome.confirmed || len(outcome.captured) > 0 {
		result.Metadata.ModeState = outcome.state
		result.Metadata.ModeChanged = true
		result.Metadata.Extracted = outcome.captured
		result.Metadata.Confirmed = outcome.confirmed
	}

	// An empty response tag is deliberate silence, not a failure. A reply
	// that carried only an extract block is treated the same way.
	if hasResponseTag || extract != nil || response != "" {
		result.Answer = strPtr(response)
	}
	return result, nil
}

// freeTurn is a standalone persona exchange. reminder carries the saved
// appointment reference block when one exists.
func (h *CharacterHandler) freeTurn(ctx context.Context, req *Request, result *Result, reminder string) (*Result, error) {
	persona := h.persona
	if persona == "" {
		persona = defaultPersona
	}

	var sb strings.Builder
	sb.WriteString(persona)
	if h.restrictions != "" {
		sb.WriteString("\n\n")
		sb.WriteString(h.restrictions)
	}
	if reminder != "" {
		sb.WriteString("\n\n")
		sb.WriteString(reminder)
	}

	messages := make([]llm.Message, 0, len(req.History)+2)
	messages = append(messages, llm.SystemPrompt(sb.String()))
	messages = append(messages, req.History...)
	messages = append(messages, llm.UserMessage(req.Query))

	reply, _, err := h.llm.Chat(ctx, messages)
	if err != nil {
		slog.Warn("character turn failed", "error", err)
		result.Metadata.Error = err.Error()
		return result, nil
	}
	if reply = strings.TrimSpace(reply); reply != "" {
		result.Answer = strPtr(reply)
	}

	if h.hasModeFields() && hasPassiveSignals(req.Query) {
		h.opportunisticExtract(ctx, req, result)
	}
	return result, nil
}

// fastCapture stores a single validated answer and asks the next question
// from the field schema.
func (h *CharacterHandler) fastCapture(req *Request, result *Result, mode string, fields []flow.Field, key, value string) *Result {
	merged := cloneState(req.FlowState)
	merged[flow.KeyActiveMode] = mode
	sub := cloneSub(merged, mode)
	sub[key] = value
	merged[mode] = sub

	result.Answer = strPtr(nextPrompt(fields, collectedStrings(merged, mode)))
	result.Metadata.ModeState = merged
	result.Metadata.ModeChanged = true
	result.Metadata.Extracted = map[string]string{key: value}
	return result
}

func (h *CharacterHandler) buildFlowSystemPrompt(modeCtx string) string {
	persona := h.persona
	if persona == "" {
		persona = defaultPersona
	}

	var sb strings.Builder
	sb.WriteString(persona)
	if h.restrictions != "" {
		sb.WriteString("\n\n")
		sb.WriteString(h.restrictions)
	}
	sb.WriteString("\n\n")
	sb.WriteString(modeCtx)
	sb.WriteString("\nKurallar:\n")
	sb.WriteString("- Her turda en fazla bir soru sor.\n")
	sb.WriteString("- Fiyatı sana verilen tutardan aynen aktar, kendin hesap yapma.\n")
	sb.WriteString("- Müşterinin bu mesajda verdiği yeni bilgileri <extract>{\"alan_adi\": \"deger\"}</extract> bloğu içinde döndür.\n")
	sb.WriteString("- Müşteri bilgileri onayladıysa <extract>{\"confirmed\": true}</extract> döndür.\n")
	sb.WriteString("- Müşteri vazgeçtiyse <extract>{\"cancelled\": true}</extract> döndür.\n")
	sb.WriteString("- Müşteriye söyleyeceğini <response>...</response> içinde ver.\n")
	return sb.String()
}

type extractOutcome struct {
	state     store.FlowState
	captured  map[string]string
	confirmed bool
	cancelled bool
}

// mergeExtract validates extracted values and merges them into a copy of
// the flow state. Option answers are normalised, invalid values dropped,
// and fields whose show_if no longer holds in the merged state removed.
func (h *CharacterHandler) mergeExtract(state map[string]any, mode string, fields []flow.Field, extract map[string]any) extractOutcome {
	merged := cloneState(state)

	if isTrue(extract["cancelled"]) {
		delete(merged, flow.KeyActiveMode)
		delete(merged, mode)
		return extractOutcome{state: merged, cancelled: true}
	}

	merged[flow.KeyActiveMode] = mode
	sub := cloneSub(merged, mode)
	merged[mode] = sub

	outcome := extractOutcome{state: merged, captured: make(map[string]string)}
	if isTrue(extract["confirmed"]) {
		sub[flow.KeyConfirmed] = true
		outcome.confirmed = true
	}

	for key, raw := range extract {
		if key == "confirmed" || key == "cancelled" || key == "mode" {
			continue
		}
		field, ok := fieldByKey(fields, key)
		if !ok {
			continue
		}
		value, ok := stringValue(raw)
		if !ok {
			continue
		}

		if value == flow.Skip || isSkipWord(value) {
			if !field.Required {
				sub[key] = flow.Skip
				outcome.captured[key] = flow.Skip
			}
			continue
		}
		if len(field.Options) > 0 {
			norm, valid := flow.NormalizeOption(field.Options, value)
			if !valid {
				continue
			}
			value = norm
		}
		if field.Validation != "" {
			canonical, valid := flow.Validate(field.Validation, value)
			if !valid {
				continue
			}
			value = canonical
		}

		sub[key] = value
		outcome.captured[key] = value
	}

	mergedCollected := collectedStrings(merged, mode)
	for key := range outcome.captured {
		field, _ := fieldByKey(fields, key)
		if field.ShowIf != nil && !flow.FieldIsVisible(field, mergedCollected) {
			delete(sub, key)
			delete(outcome.captured, key)
		}
	}

	return outcome
}

// opportunisticExtract runs a focused second call when a free-form message
// looks like it carries intake details, and starts the detected mode.
func (h *CharacterHandler) opportunisticExtract(ctx context.Context, req *Request, result *Result) {
	reply, _, err := h.llm.Chat(ctx, []llm.Message{
		llm.SystemPrompt(extractionSystemPrompt),
		llm.UserMessage(h.buildExtractionPrompt(req.Query)),
	})
	if err != nil {
		slog.Debug("opportunistic extraction failed", "error", err)
		return
	}

	extract, ok := parseExtractionReply(reply)
	if !ok {
		return
	}
	mode, _ := stringValue(extract["mode"])
	if !h.modeAvailable(mode) {
		return
	}
	fields := h.modeCfg.FieldsForMode(mode)
	if len(fields) == 0 {
		return
	}

	outcome := h.mergeExtract(req.FlowState, mode, fields, extract)
	result.Metadata.ModeState = outcome.state
	result.Metadata.ModeChanged = true
	result.Metadata.Extracted = outcome.captured
}

func (h *CharacterHandler) buildExtractionPrompt(query string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Mesaj: %q\n\n", query)
	sb.WriteString("Şu JSON biçiminde yanıtla: {\"mode\": \"appointment\" | \"order\" | \"reschedule\" | null")

	appendFieldKeys := func(fields []flow.Field) {
		for _, f := range fields {
			fmt.Fprintf(&sb, ", \"%s\": \"...\"", f.Key)
		}
	}
	appendFieldKeys(h.modeCfg.AppointmentFields)
	if h.modeCfg.OrderModeEnabled {
		appendFieldKeys(h.modeCfg.OrderFields)
	}
	sb.WriteString("}\n")
	sb.WriteString("Yalnızca mesajda açıkça geçen alanları doldur. Randevu, sipariş veya erteleme niyeti yoksa {\"mode\": null} döndür.")
	return sb.String()
}

func (h *CharacterHandler) modeAvailable(mode string) bool {
	switch mode {
	case flow.ModeAppointment:
		return len(h.modeCfg.AppointmentFields) > 0
	case flow.ModeOrder:
		return h.modeCfg.OrderModeEnabled && len(h.modeCfg.OrderFields) > 0
	case flow.ModeReschedule:
		return true
	default:
		return false
	}
}

func (h *CharacterHandler) hasModeFields() bool {
	return len(h.modeCfg.AppointmentFields) > 0 || h.modeCfg.OrderModeEnabled
}

func parseCharacterReply(reply string) (extract map[string]any, response string, hasResponseTag bool) {
	if m := extractPattern.FindStringSubmatch(reply); m != nil {
		// Malformed extract JSON is tolerated; the block is still stripped
		// from the visible answer.
		_ = json.Unmarshal([]byte(m[1]), &extract)
	}
	if m := responsePattern.FindStringSubmatch(reply); m != nil {
		return extract, strings.TrimSpace(m[1]), true
	}
	cleaned := strings.TrimSpace(extractPattern.ReplaceAllString(reply, ""))
	return extract, cleaned, false
}

func parseExtractionReply(reply string) (map[string]any, bool) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start == -1 || end <= start {
		return nil, false
	}
	var extract map[string]any
	if err := json.Unmarshal([]byte(reply[start:end+1]), &extract); err != nil {
		return nil, false
	}
	return extract, true
}

func pendingField(fields []flow.Field, collected map[string]string) (flow.Field, bool, bool) {
	if f, ok := flow.NextField(fields, collected); ok {
		return f, true, true
	}
	if f, ok := flow.NextOptionalField(fields, collected); ok {
		return f, false, true
	}
	return flow.Field{}, false, false
}

func nextPrompt(fields []flow.Field, collected map[string]string) string {
	if f, ok := flow.NextField(fields, collected); ok {
		return f.Question
	}
	if f, ok := flow.NextOptionalField(fields, collected); ok {
		return f.Question
	}
	return "Gerekli bilgilerin hepsi tamam. Onaylıyor musunuz?"
}

func isSkipWord(s string) bool {
	return skipWords[flow.Fold(s)]
}

func hasPassiveSignals(query string) bool {
	folded := flow.Fold(query)
	for _, kw := range passiveKeywords {
		if strings.Contains(folded, kw) {
			return true
		}
	}
	return passiveSignalPattern.MatchString(query)
}

func isTrue(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

func fieldByKey(fields []flow.Field, key string) (flow.Field, bool) {
	for _, f := range fields {
		if f.Key == key {
			return f, true
		}
	}
	return flow.Field{}, false
}

func stringValue(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		trimmed := strings.TrimSpace(v)
		return trimmed, trimmed != ""
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10), true
		}
		return strconv.FormatFloat(v, 'f', -1, 64), true
	default:
		return "", false
	}
}

// collectedStrings mirrors the mode engine's view of a state sub-map. The
// generated reference number is not a collected answer in appointment mode.
func collectedStrings(state map[string]any, mode string) map[string]string {
	out := make(map[string]string)
	sub, _ := state[mode].(map[string]any)
	for k, v := range sub {
		if mode == flow.ModeAppointment && k == flow.KeyApptNumber {
			continue
		}
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

func cloneState(state map[string]any) store.FlowState {
	cloned := make(store.FlowState, len(state)+2)
	for k, v := range state {
		cloned[k] = v
	}
	return cloned
}

func cloneSub(state map[string]any, mode string) map[string]any {
	cloned := make(map[string]any)
	if sub, ok := state[mode].(map[string]any); ok {
		for k, v := range sub {
			cloned[k] = v
		}
	}
	return cloned
}
