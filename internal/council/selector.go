package council

import (
	"context"
	"fmt"
	"sync"

	"github.com/lastagent/lastagent/internal/analyzer"
	"github.com/lastagent/lastagent/internal/config"
	"github.com/lastagent/lastagent/internal/matcher"
	"github.com/lastagent/lastagent/internal/models"
	"github.com/lastagent/lastagent/internal/tracer"
)

// DefaultAgent is selected when neither the council nor local matching
// produces a candidate.
const DefaultAgent = "claude"

const (
	fallbackMatchedConfidence = 0.7
	fallbackDefaultConfidence = 0.5
	majorityConfidence        = 0.7
	defaultSelectionReasoning = "Default selection"
	majorityReasoning         = "Selected by majority vote (chairman unavailable)"
	fallbackReasoning         = "Selected based on local capability matching"
)

// Selector runs agent selection for one task at a time; a single Selector
// may serve concurrent tasks.
type Selector struct {
	registry *config.Registry
	analyzer *analyzer.Analyzer
	matcher  *matcher.Matcher
	client   ModelClient
	members  []config.CouncilMember
	chairman config.ChairmanConfig
	enabled  bool
	logger   Logger
}

// NewSelector creates a Selector. A nil client or a disabled config makes
// every selection use local matching.
func NewSelector(registry *config.Registry, client ModelClient, cfg config.CouncilConfig, logger Logger) *Selector {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Selector{
		registry: registry,
		analyzer: analyzer.New(),
		matcher:  matcher.New(registry),
		client:   client,
		members:  append([]config.CouncilMember(nil), cfg.Members...),
		chairman: cfg.Chairman,
		enabled:  cfg.Enabled,
		logger:   logger,
	}
}

// Available reports whether council voting will be attempted.
func (s *Selector) Available() bool {
	return s.enabled && s.client != nil && len(s.members) > 0
}

// Select picks an agent for the task. It never fails: any problem with
// voting yields a fallback selection built from local matching.
func (s *Selector) Select(ctx context.Context, userPrompt, systemPrompt string) (selection models.CouncilSelection) {
	ctx, span := tracer.StartSpan(ctx, "council.select",
		tracer.BoolAttr("council.available", s.Available()))
	defer span.End()

	analysis := s.analyzer.Analyze(userPrompt, systemPrompt)
	match := s.matcher.Match(analysis)

	if !s.Available() {
		s.logger.LogDebug("council unavailable, using local capability matching")
		selection = s.fallback(&match, "")
		span.SetAttributes(tracer.StringAttr("council.selected", selection.SelectedAgent))
		tracer.SetOK(span)
		return selection
	}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic during council selection: %v", r)
			s.logger.LogError(err.Error())
			tracer.RecordError(span, err)
			selection = s.fallback(&match, err.Error())
		}
	}()

	s.logger.LogInfo(fmt.Sprintf("council selection started with %d members over %d agents", len(s.members), s.registry.Len()))
	selection, err := s.runCouncil(ctx, userPrompt, systemPrompt, &match)
	if err != nil {
		s.logger.LogWarn(fmt.Sprintf("council selection failed: %v", err))
		tracer.RecordError(span, err)
		return s.fallback(&match, err.Error())
	}

	span.SetAttributes(
		tracer.StringAttr("council.selected", selection.SelectedAgent),
		tracer.FloatAttr("council.confidence", selection.Confidence),
		tracer.IntAttr("council.votes", len(selection.Votes)),
	)
	tracer.SetOK(span)
	return selection
}

func (s *Selector) runCouncil(ctx context.Context, userPrompt, systemPrompt string, match *models.MatchResult) (models.CouncilSelection, error) {
	votes := s.collectVotes(ctx, userPrompt, systemPrompt)
	if len(votes) == 0 {
		return models.CouncilSelection{}, ErrNoVotes
	}

	suggestions := distinctSuggestions(votes)
	rankings := s.collectRankings(ctx, userPrompt, suggestions)
	if err := ctx.Err(); err != nil {
		return models.CouncilSelection{}, err
	}

	selected, confidence, reasoning := s.decide(ctx, userPrompt, votes, rankings, match.RecommendedAgents)

	weights := make(map[string]float64, len(s.members))
	for _, m := range s.members {
		weights[m.Model] = m.Weight
	}

	return models.CouncilSelection{
		SelectedAgent:   selected,
		Confidence:      confidence,
		Reasoning:       reasoning,
		Votes:           votes,
		Rankings:        rankings,
		AggregateScores: aggregateScores(votes, rankings, weights),
		MatchResult:     match,
	}, nil
}

// fanOut queries every member concurrently and returns replies in member
// order. Failed members yield ok=false.
func (s *Selector) fanOut(ctx context.Context, prompt string) []memberReply {
	replies := make([]memberReply, len(s.members))
	var wg sync.WaitGroup
	for i, member := range s.members {
		wg.Add(1)
		go func(i int, member config.CouncilMember) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					s.logger.LogWarn(fmt.Sprintf("council member %s panicked: %v", member.Model, r))
					replies[i] = memberReply{model: member.Model}
				}
			}()
			text, err := s.client.Complete(ctx, CompletionRequest{Model: member.Model, Prompt: prompt})
			if err != nil {
				s.logger.LogWarn(fmt.Sprintf("council member %s failed: %v", member.Model, err))
				replies[i] = memberReply{model: member.Model}
				return
			}
			replies[i] = memberReply{model: member.Model, text: text, ok: true}
		}(i, member)
	}
	wg.Wait()
	return replies
}

type memberReply struct {
	model string
	text  string
	ok    bool
}

func (s *Selector) collectVotes(ctx context.Context, userPrompt, systemPrompt string) []models.CouncilVote {
	ctx, span := tracer.StartSpan(ctx, "council.stage1_suggest")
	defer span.End()

	prompt := suggestPrompt(userPrompt, systemPrompt, formatRoster(s.registry))
	var votes []models.CouncilVote
	for _, reply := range s.fanOut(ctx, prompt) {
		if !reply.ok {
			continue
		}
		agent, reason, ok := parseSuggestion(reply.text, s.registry.Exists)
		if !ok {
			s.logger.LogDebug(fmt.Sprintf("council member %s gave no usable vote", reply.model))
			continue
		}
		s.logger.LogDebug(fmt.Sprintf("council member %s voted %s", reply.model, agent))
		votes = append(votes, models.CouncilVote{
			Model:          reply.model,
			SuggestedAgent: agent,
			Reasoning:      reason,
		})
	}
	span.SetAttributes(tracer.IntAttr("council.votes", len(votes)))
	return votes
}

func (s *Selector) collectRankings(ctx context.Context, userPrompt string, suggestions []string) []models.CouncilRanking {
	rankings := []models.CouncilRanking{}
	if len(suggestions) < 2 {
		return rankings
	}

	ctx, span := tracer.StartSpan(ctx, "council.stage2_rank",
		tracer.IntAttr("council.suggestions", len(suggestions)))
	defer span.End()

	prompt := rankPrompt(userPrompt, suggestions)
	for _, reply := range s.fanOut(ctx, prompt) {
		if !reply.ok {
			continue
		}
		rankings = append(rankings, models.CouncilRanking{
			Model:       reply.model,
			Rankings:    parseRanking(reply.text, suggestions),
			RawResponse: reply.text,
		})
	}
	return rankings
}

func (s *Selector) decide(ctx context.Context, userPrompt string, votes []models.CouncilVote, rankings []models.CouncilRanking, recommended []string) (string, float64, string) {
	ctx, span := tracer.StartSpan(ctx, "council.stage3_chairman",
		tracer.StringAttr("llm.model", s.chairman.Model))
	defer span.End()

	if s.chairman.Model == "" {
		return s.withoutChairman(votes, recommended)
	}

	temp := s.chairman.Temperature
	text, err := s.client.Complete(ctx, CompletionRequest{
		Model:       s.chairman.Model,
		Prompt:      chairmanPrompt(userPrompt, votes, rankings, recommended),
		Temperature: &temp,
		MaxTokens:   s.chairman.MaxTokens,
	})
	if err != nil {
		s.logger.LogWarn(fmt.Sprintf("chairman %s failed: %v", s.chairman.Model, err))
		tracer.RecordError(span, err)
		return s.withoutChairman(votes, recommended)
	}

	d := parseChairman(text, s.registry.Exists)
	if d.Selected == "" {
		d.Selected = majorityVote(votes)
	}
	if d.Selected == "" {
		d.Selected = firstOr(recommended, DefaultAgent)
	}
	s.logger.LogInfo(fmt.Sprintf("chairman selected %s (confidence %.2f)", d.Selected, d.Confidence))
	tracer.SetOK(span)
	return d.Selected, d.Confidence, d.Reasoning
}

func (s *Selector) withoutChairman(votes []models.CouncilVote, recommended []string) (string, float64, string) {
	if winner := majorityVote(votes); winner != "" {
		return winner, majorityConfidence, majorityReasoning
	}
	return firstOr(recommended, DefaultAgent), fallbackDefaultConfidence, defaultSelectionReasoning
}

func (s *Selector) fallback(match *models.MatchResult, cause string) models.CouncilSelection {
	selected := match.Top()
	confidence := fallbackMatchedConfidence
	if selected == "" {
		selected = DefaultAgent
		confidence = fallbackDefaultConfidence
	}

	reasoning := fallbackReasoning
	if cause != "" {
		reasoning += fmt.Sprintf(" (council error: %s)", cause)
	}

	return models.CouncilSelection{
		SelectedAgent:   selected,
		Confidence:      confidence,
		Reasoning:       reasoning,
		Votes:           []models.CouncilVote{},
		Rankings:        []models.CouncilRanking{},
		AggregateScores: map[string]float64{selected: 1.0},
		MatchResult:     match,
		UsedFallback:    true,
	}
}

func distinctSuggestions(votes []models.CouncilVote) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range votes {
		if v.SuggestedAgent != "" && !seen[v.SuggestedAgent] {
			seen[v.SuggestedAgent] = true
			out = append(out, v.SuggestedAgent)
		}
	}
	return out
}

func firstOr(list []string, def string) string {
	if len(list) > 0 {
		return list[0]
	}
	return def
}
