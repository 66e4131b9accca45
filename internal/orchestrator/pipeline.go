package orchestrator

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vertice360/leadqual/internal/extract"
)

// Node identifiers, in execution order.
var nodes = []string{
	"normalize_input",
	"intent_classify",
	"extract_entities",
	"pragmatics",
	"decide_next",
	"build_response",
}

const (
	DecisionAskDocs      = "ask_docs"
	DecisionHandoffAgent = "handoff_agent"
	DecisionAnswerMulti  = "answer_multi"
	DecisionAnswerBasic  = "answer_basic"
)

// Step is the recorded trace of one stage run.
type Step struct {
	RunID     string         `json:"runId"`
	NodeID    string         `json:"nodeId"`
	Status    string         `json:"status"`
	StartedAt int64          `json:"startedAt"`
	EndedAt   int64          `json:"endedAt"`
	Summary   string         `json:"summary"`
	Data      map[string]any `json:"data,omitempty"`
}

// IntentScore is one scored intent category with the keywords that matched.
type IntentScore struct {
	Name     string   `json:"name"`
	Score    float64  `json:"score"`
	Evidence []string `json:"evidence"`
}

// Pragmatics carries the speech-act analysis of one input.
type Pragmatics struct {
	SpeechAct            string              `json:"speechAct"`
	Urgency              string              `json:"urgency"`
	MissingSlots         map[string][]string `json:"missingSlots"`
	MissingSlotsCount    int                 `json:"missingSlotsCount"`
	RecommendedQuestions []string            `json:"recommendedQuestions"`
}

// State is the pipeline record. Each stage consumes the previous stage's
// copy and returns an extended one, so any prefix of the trace can be
// replayed from its inputs.
type State struct {
	RunID            string        `json:"runId"`
	Input            string        `json:"input"`
	NormalizedInput  string        `json:"normalizedInput"`
	MatchText        string        `json:"-"`
	Intents          []IntentScore `json:"intents"`
	PrimaryIntent    string        `json:"primaryIntent"`
	SecondaryIntents []string      `json:"secondaryIntents"`
	Entities         Entities      `json:"entities"`
	Pragmatics       Pragmatics    `json:"pragmatics"`
	Decision         string        `json:"decision"`
	ResponseText     string        `json:"responseText"`
	Steps            []Step        `json:"steps"`

	// lastStep is the summary/data staged by the stage function, consumed
	// and completed by runStage.
	lastStep Step
}

// Pipeline is the general dialogue analyzer. It shares the extractors with
// the session engine but carries no session state: every run is a pure
// function of the input text.
type Pipeline struct {
	logger        *zap.Logger
	replyMaxChars int
	now           func() time.Time
}

// NewPipeline builds a pipeline. replyMaxChars bounds the rendered response;
// zero or negative falls back to 480.
func NewPipeline(logger *zap.Logger, replyMaxChars int) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if replyMaxChars <= 0 {
		replyMaxChars = 480
	}
	return &Pipeline{
		logger:        logger,
		replyMaxChars: replyMaxChars,
		now:           time.Now,
	}
}

// Nodes returns the stage identifiers in execution order.
func (p *Pipeline) Nodes() []string {
	out := make([]string, len(nodes))
	copy(out, nodes)
	return out
}

type stageFunc func(State) (State, error)

// Run executes every stage over the input. A stage failure is recorded as a
// failed step and returned with the partial state, so callers can fall back
// to a canned reply while keeping the trace.
func (p *Pipeline) Run(input string) (State, error) {
	state := State{
		RunID: uuid.NewString(),
		Input: input,
	}
	stages := []struct {
		node string
		fn   stageFunc
	}{
		{"normalize_input", p.normalizeInput},
		{"intent_classify", p.classifyIntent},
		{"extract_entities", p.extractEntities},
		{"pragmatics", p.analyzePragmatics},
		{"decide_next", p.decideNext},
		{"build_response", p.buildResponse},
	}
	for _, stage := range stages {
		next, err := p.runStage(state, stage.node, stage.fn)
		if err != nil {
			return next, err
		}
		state = next
	}
	return state, nil
}

func (p *Pipeline) runStage(state State, node string, fn stageFunc) (State, error) {
	startedAt := p.epochMS()
	next, err := fn(state)
	endedAt := p.epochMS()
	if err != nil {
		state.Steps = append(state.Steps, Step{
			RunID:     state.RunID,
			NodeID:    node,
			Status:    "failed",
			StartedAt: startedAt,
			EndedAt:   endedAt,
			Summary:   fmt.Sprintf("failed: %v", err),
			Data:      map[string]any{"error": err.Error()},
		})
		p.logger.Warn("pipeline stage failed", zap.String("node", node), zap.Error(err))
		return state, err
	}
	step := next.lastStep
	step.RunID = next.RunID
	step.NodeID = node
	step.Status = "completed"
	step.StartedAt = startedAt
	step.EndedAt = endedAt
	next.Steps = append(next.Steps, step)
	next.lastStep = Step{}
	return next, nil
}

func (p *Pipeline) epochMS() int64 {
	return p.now().UnixMilli()
}

func (p *Pipeline) normalizeInput(state State) (State, error) {
	state.NormalizedInput = extract.CollapseSpaces(state.Input)
	state.MatchText = extract.Normalize(state.NormalizedInput)
	state.lastStep = Step{
		Summary: fmt.Sprintf("len=%d", len(state.NormalizedInput)),
		Data:    map[string]any{"normalizedInput": state.NormalizedInput},
	}
	return state, nil
}

func (p *Pipeline) classifyIntent(state State) (State, error) {
	var scored []IntentScore
	for name, keywords := range intentKeywords {
		var evidence []string
		for _, kw := range keywords {
			if matchKeyword(state.MatchText, kw) {
				evidence = append(evidence, kw)
			}
		}
		if len(evidence) > 0 {
			scored = append(scored, IntentScore{Name: name, Score: float64(len(evidence)), Evidence: evidence})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return intentOrder(scored[i].Name) < intentOrder(scored[j].Name)
	})

	primary := IntentGeneral
	var secondary []string
	if len(scored) > 0 {
		primary = scored[0].Name
		for _, item := range scored[1:] {
			if item.Score >= scoreThreshold {
				secondary = append(secondary, item.Name)
			}
		}
	}

	state.Intents = scored
	state.PrimaryIntent = primary
	state.SecondaryIntents = secondary
	state.lastStep = Step{
		Summary: fmt.Sprintf("primary=%s intents=%d", primary, len(scored)),
		Data: map[string]any{
			"primaryIntent":    primary,
			"secondaryIntents": secondary,
			"intents":          scored,
		},
	}
	return state, nil
}

func (p *Pipeline) extractEntities(state State) (State, error) {
	ents := extractAll(state.Input, p.now())
	state.Entities = ents

	var commercial []string
	for _, slot := range commercialSlotPriority {
		if entityHasSlot(ents, slot) {
			commercial = append(commercial, slot)
		}
	}
	summary := fmt.Sprintf("entities: email=%d phone=%d commercial=", len(ents.Emails), len(ents.Phones))
	if len(commercial) > 0 {
		summary += strings.Join(commercial, ",")
	} else {
		summary += "none"
	}
	if !ents.Visit.Empty() {
		summary += " +visit"
	}
	state.lastStep = Step{
		Summary: summary,
		Data:    map[string]any{"entities": ents},
	}
	return state, nil
}

func (p *Pipeline) analyzePragmatics(state State) (State, error) {
	text := state.MatchText
	ents := state.Entities

	speechAct := "other"
	switch {
	case hasAnyToken(text, complaintTokens):
		speechAct = "complaint"
	case strings.Contains(text, "?") || hasAnyToken(text, questionTokens):
		speechAct = "question"
	case hasAnyToken(text, greetingTokens):
		speechAct = "greeting"
	case hasAnyToken(text, requestTokens):
		speechAct = "request"
	}

	urgency := "low"
	if hasAnyToken(text, urgentTokens) {
		urgency = "high"
	}

	missing := make(map[string][]string)
	var questions []string

	relevant := relevantIntents(state)
	for _, intent := range relevant {
		if intent == IntentPropertySearch {
			slots := missingCommercialSlots(ents)
			if len(slots) > 0 {
				missing[intent] = slots
				questions = append(questions, questionForMissing(slots))
			}
			continue
		}
		templateSlots := pragmaticsMissingSlots[intent]
		var open []string
		for _, slot := range templateSlots {
			if !slotSatisfied(slot, ents, text) {
				open = append(open, slot)
			}
		}
		if len(open) > 0 {
			missing[intent] = open
			if q, ok := questionTemplates[intent]; ok {
				questions = append(questions, q)
			}
		}
	}

	questions = dedupe(questions)
	if len(questions) > 2 {
		questions = questions[:2]
	}

	count := 0
	for _, slots := range missing {
		count += len(slots)
	}

	state.Pragmatics = Pragmatics{
		SpeechAct:            speechAct,
		Urgency:              urgency,
		MissingSlots:         missing,
		MissingSlotsCount:    count,
		RecommendedQuestions: questions,
	}
	state.lastStep = Step{
		Summary: fmt.Sprintf("speechAct=%s urgency=%s missing=%d", speechAct, urgency, count),
		Data: map[string]any{
			"speechAct":            speechAct,
			"urgency":              urgency,
			"missingSlots":         missing,
			"missingSlotsCount":    count,
			"recommendedQuestions": questions,
		},
	}
	return state, nil
}

func (p *Pipeline) decideNext(state State) (State, error) {
	decision := DecisionAnswerBasic
	relevant := relevantIntents(state)
	switch {
	case state.PrimaryIntent == IntentDocs:
		decision = DecisionAskDocs
	case containsIntent(relevant, IntentHandoffAgent):
		decision = DecisionHandoffAgent
	case len(relevant) >= 2:
		decision = DecisionAnswerMulti
	}

	state.Decision = decision
	data := map[string]any{"decision": decision}
	if state.Pragmatics.MissingSlotsCount > 0 {
		data["missingSlotsCount"] = state.Pragmatics.MissingSlotsCount
	}
	state.lastStep = Step{
		Summary: fmt.Sprintf("decision=%s", decision),
		Data:    data,
	}
	return state, nil
}

func (p *Pipeline) buildResponse(state State) (State, error) {
	paragraph := p.paragraphFor(state)
	text := fitResponse(paragraph, state.Pragmatics.RecommendedQuestions, p.replyMaxChars)

	state.ResponseText = text
	state.lastStep = Step{
		Summary: fmt.Sprintf("response len=%d", len(text)),
		Data:    map[string]any{"responseText": text},
	}
	return state, nil
}

func (p *Pipeline) paragraphFor(state State) string {
	switch state.Decision {
	case DecisionAskDocs:
		return "Para avanzar necesito DNI y comprobante de ingresos."
	case DecisionHandoffAgent:
		return "Listo, paso tu consulta a un asesor. Te confirma en breve, WhatsApp o llamada?"
	case DecisionAnswerMulti:
		return "Puedo ayudarte con varias cosas a la vez. Vamos por partes."
	}
	if state.Pragmatics.SpeechAct == "greeting" && state.PrimaryIntent == IntentGeneral {
		return "Hola! Soy el asistente de Vertice360. Decime zona, ambientes y presupuesto para buscar opciones."
	}
	if state.PrimaryIntent == IntentPropertySearch {
		if slots := state.Pragmatics.MissingSlots[IntentPropertySearch]; len(slots) > 0 {
			return fmt.Sprintf("Para avanzar necesito: %s.", strings.Join(slots, ", "))
		}
		return "Estoy buscando propiedades que coincidan con tu criterio..."
	}
	return "Puedo ayudarte con disponibilidad, precios, ubicacion y visitas. Contame zona, ambientes y presupuesto."
}

// fitResponse appends up to two clarifying questions to the paragraph while
// staying inside the character budget. When the budget is tight it drops
// trailing questions before resorting to a hard cut, so a reply never ends
// mid-sentence unless even a single question does not fit.
func fitResponse(paragraph string, questions []string, maxChars int) string {
	if len(questions) > 2 {
		questions = questions[:2]
	}
	candidates := make([]string, 0, len(questions)+2)
	for drop := 0; drop <= len(questions); drop++ {
		kept := questions[:len(questions)-drop]
		parts := append([]string{paragraph}, kept...)
		candidates = append(candidates, strings.TrimSpace(strings.Join(parts, " ")))
	}
	if len(questions) > 0 {
		candidates = append(candidates, questions[0])
	}
	for _, candidate := range candidates {
		if len([]rune(candidate)) <= maxChars {
			return candidate
		}
	}
	runes := []rune(candidates[len(candidates)-1])
	if maxChars <= 1 {
		return string(runes[:maxChars])
	}
	return string(runes[:maxChars-1]) + "…"
}

func relevantIntents(state State) []string {
	var out []string
	for _, item := range state.Intents {
		if item.Score >= scoreThreshold {
			out = append(out, item.Name)
		}
	}
	return out
}

func containsIntent(intents []string, name string) bool {
	for _, intent := range intents {
		if intent == name {
			return true
		}
	}
	return false
}

func missingCommercialSlots(ents Entities) []string {
	var missing []string
	for _, slot := range commercialSlotPriority {
		if !entityHasSlot(ents, slot) {
			missing = append(missing, slot)
		}
	}
	if ents.BudgetAmbiguous && !containsIntent(missing, "moneda") {
		missing = append(missing, "moneda")
	}
	return missing
}

func entityHasSlot(ents Entities, slot string) bool {
	switch slot {
	case "zona":
		return ents.Zona != ""
	case "tipologia":
		return ents.Tipologia != ""
	case "presupuesto":
		return ents.Presupuesto > 0 && !ents.BudgetAmbiguous
	case "moneda":
		return ents.Moneda != "" && !ents.BudgetAmbiguous
	case "fecha_mudanza":
		return ents.FechaMudanza != ""
	default:
		return false
	}
}

func slotSatisfied(slot string, ents Entities, text string) bool {
	switch slot {
	case "currency":
		return ents.Moneda != ""
	case "budget":
		return ents.Presupuesto > 0
	case "project_or_zone":
		return ents.Zona != ""
	case "date_range":
		return !ents.Visit.Empty() || ents.FechaMudanza != ""
	case "dni":
		return len(ents.DNICuit) > 0
	case "income_proof":
		return strings.Contains(text, "recibo") || strings.Contains(text, "ingresos")
	case "contact_method":
		return len(ents.Phones) > 0 || len(ents.Emails) > 0
	case "unit", "unit_type":
		return ents.Tipologia != ""
	default:
		return false
	}
}

// keywordPatterns precompiles word-boundary matchers for plain keywords.
// Keywords with symbols ("$", "av.") match by containment instead.
var keywordPatterns = map[string]*regexp.Regexp{}

func init() {
	var all []string
	for _, keywords := range intentKeywords {
		all = append(all, keywords...)
	}
	all = append(all, questionTokens...)
	all = append(all, greetingTokens...)
	all = append(all, urgentTokens...)
	all = append(all, complaintTokens...)
	all = append(all, requestTokens...)
	for _, kw := range all {
		if isWordLike(kw) {
			keywordPatterns[kw] = regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`)
		}
	}
}

func isWordLike(keyword string) bool {
	for _, r := range keyword {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == ' ':
		default:
			return false
		}
	}
	return keyword != ""
}

func matchKeyword(text, keyword string) bool {
	if re, ok := keywordPatterns[keyword]; ok {
		return re.MatchString(text)
	}
	return strings.Contains(text, keyword)
}

func hasAnyToken(text string, tokens []string) bool {
	for _, token := range tokens {
		if matchKeyword(text, token) {
			return true
		}
	}
	return false
}
