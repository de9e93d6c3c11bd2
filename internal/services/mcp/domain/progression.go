package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	progression "github.com/emberhabit/ember/internal/services/progression/domain"
	"github.com/emberhabit/ember/internal/services/progression/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// TierResolveInput represents the MCP tool input for tier resolution.
type TierResolveInput struct {
	ScopeKind string `json:"scope_kind" jsonschema:"progression axis: habit or group"`
	Counter   int    `json:"counter" jsonschema:"current counter value (streak days or group level)"`
}

// TierResolveResult represents the MCP tool output for tier resolution.
type TierResolveResult struct {
	TierIndex     int     `json:"tier_index" jsonschema:"1-based tier index"`
	TierName      string  `json:"tier_name" jsonschema:"display name of the resolved tier"`
	Multiplier    float64 `json:"multiplier" jsonschema:"XP multiplier granted by the tier"`
	LowerBound    int     `json:"lower_bound" jsonschema:"inclusive lower bound of the tier"`
	UpperBound    *int    `json:"upper_bound,omitempty" jsonschema:"inclusive upper bound; absent for the topmost tier"`
	PercentInTier float64 `json:"percent_in_tier" jsonschema:"progress through the tier, 0-100"`
}

// QuestTargetInput represents the MCP tool input for quest target normalization.
type QuestTargetInput struct {
	BaseTarget  int      `json:"base_target" jsonschema:"quest's base completion target"`
	HabitsCount int      `json:"habits_count" jsonschema:"number of habits tracked by the group"`
	Percent     *float64 `json:"percent,omitempty" jsonschema:"optional normalizer percentage in (0, 1]; defaults to 0.6"`
}

// QuestTargetResult represents the MCP tool output for quest target normalization.
type QuestTargetResult struct {
	Target int `json:"target" jsonschema:"normalized quest target"`
}

// MilestonePreviewInput represents the MCP tool input for milestone previews.
type MilestonePreviewInput struct {
	StartedAt string `json:"started_at" jsonschema:"habit start timestamp, RFC 3339"`
}

// MilestoneView is one milestone in tool output.
type MilestoneView struct {
	ID           string `json:"id" jsonschema:"milestone identifier"`
	DayThreshold int    `json:"day_threshold" jsonschema:"elapsed days required"`
	XP           int    `json:"xp" jsonschema:"XP granted on unlock"`
	Badge        string `json:"badge,omitempty" jsonschema:"badge identifier, if any"`
}

// MilestonePreviewResult represents the MCP tool output for milestone previews.
type MilestonePreviewResult struct {
	ElapsedDays int             `json:"elapsed_days" jsonschema:"calendar days elapsed since start"`
	Reached     []MilestoneView `json:"reached" jsonschema:"milestones reached by the elapsed-day count, in ladder order"`
}

// CursorListInput represents the MCP tool input for cursor listing.
type CursorListInput struct{}

// CursorView is one progress cursor in tool output.
type CursorView struct {
	ScopeKind string `json:"scope_kind" jsonschema:"progression axis: habit or group"`
	ScopeID   string `json:"scope_id" jsonschema:"scope identifier"`
	Value     int    `json:"value" jsonschema:"last acknowledged counter value"`
	UpdatedAt string `json:"updated_at" jsonschema:"last update timestamp, RFC 3339"`
}

// CursorListResult represents the MCP tool output for cursor listing.
type CursorListResult struct {
	Cursors []CursorView `json:"cursors" jsonschema:"every tracked scope's cursor"`
}

// CelebrationListInput represents the MCP tool input for celebration listing.
type CelebrationListInput struct {
	ScopeKind string `json:"scope_kind,omitempty" jsonschema:"optional axis filter: habit or group"`
	ScopeID   string `json:"scope_id,omitempty" jsonschema:"optional scope identifier filter; requires scope_kind"`
	Limit     int    `json:"limit,omitempty" jsonschema:"maximum records to return; defaults to 20"`
}

// CelebrationView is one celebration in tool output.
type CelebrationView struct {
	ID           string  `json:"id" jsonschema:"celebration identifier"`
	ScopeKind    string  `json:"scope_kind" jsonschema:"progression axis"`
	ScopeID      string  `json:"scope_id" jsonschema:"scope identifier"`
	Kind         string  `json:"kind" jsonschema:"tier-up or level-up"`
	OldValue     int     `json:"old_value" jsonschema:"counter before the transition"`
	NewValue     int     `json:"new_value" jsonschema:"counter after the transition"`
	PreviousTier string  `json:"previous_tier" jsonschema:"tier before the transition"`
	CurrentTier  string  `json:"current_tier" jsonschema:"tier after the transition"`
	Multiplier   float64 `json:"multiplier" jsonschema:"XP multiplier of the current tier"`
	FiredAt      string  `json:"fired_at" jsonschema:"emission timestamp, RFC 3339"`
}

// CelebrationListResult represents the MCP tool output for celebration listing.
type CelebrationListResult struct {
	Celebrations []CelebrationView `json:"celebrations" jsonschema:"newest-first celebration records"`
}

const defaultCelebrationListLimit = 20

// TierResolveTool defines the MCP tool schema for tier resolution.
func TierResolveTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "tier_resolve",
		Description: "Resolves a counter value against a progression axis's tier table",
	}
}

// TierResolveHandler resolves a counter against the shipped tier tables.
func TierResolveHandler() mcp.ToolHandlerFor[TierResolveInput, TierResolveResult] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input TierResolveInput) (*mcp.CallToolResult, TierResolveResult, error) {
		kind, err := progression.ParseScopeKind(input.ScopeKind)
		if err != nil {
			return nil, TierResolveResult{}, err
		}
		table, err := progression.TableForScopeKind(kind)
		if err != nil {
			return nil, TierResolveResult{}, err
		}
		resolved, err := progression.ResolveTier(table, input.Counter)
		if err != nil {
			return nil, TierResolveResult{}, err
		}
		return nil, TierResolveResult{
			TierIndex:     resolved.Tier.Index,
			TierName:      resolved.Tier.Name,
			Multiplier:    resolved.Tier.Multiplier,
			LowerBound:    resolved.Tier.LowerBound,
			UpperBound:    resolved.Tier.UpperBound,
			PercentInTier: resolved.Percent,
		}, nil
	}
}

// QuestTargetTool defines the MCP tool schema for quest target normalization.
func QuestTargetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "quest_target",
		Description: "Normalizes a group quest's base target by the group's habit count",
	}
}

// QuestTargetHandler normalizes a quest target with the shipped percentage
// unless the call overrides it.
func QuestTargetHandler() mcp.ToolHandlerFor[QuestTargetInput, QuestTargetResult] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input QuestTargetInput) (*mcp.CallToolResult, QuestTargetResult, error) {
		percent := progression.DefaultQuestTargetPercent
		if input.Percent != nil {
			percent = *input.Percent
		}
		target, err := progression.NormalizeQuestTarget(input.BaseTarget, input.HabitsCount, percent)
		if err != nil {
			return nil, QuestTargetResult{}, err
		}
		return nil, QuestTargetResult{Target: target}, nil
	}
}

// MilestonePreviewTool defines the MCP tool schema for milestone previews.
func MilestonePreviewTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "milestone_preview",
		Description: "Previews which streak milestones a habit started at a given time has reached",
	}
}

// MilestonePreviewHandler computes the elapsed-day count and reached ladder
// subset for a habit start timestamp.
func MilestonePreviewHandler(clock func() time.Time) mcp.ToolHandlerFor[MilestonePreviewInput, MilestonePreviewResult] {
	if clock == nil {
		clock = time.Now
	}
	return func(_ context.Context, _ *mcp.CallToolRequest, input MilestonePreviewInput) (*mcp.CallToolResult, MilestonePreviewResult, error) {
		started, err := time.Parse(time.RFC3339, strings.TrimSpace(input.StartedAt))
		if err != nil {
			return nil, MilestonePreviewResult{}, fmt.Errorf("parse started_at: %w", err)
		}
		elapsed := progression.ElapsedDays(started, clock(), time.Local)
		reached, err := progression.ReachedMilestones(progression.DefaultMilestones, elapsed)
		if err != nil {
			return nil, MilestonePreviewResult{}, err
		}
		views := make([]MilestoneView, 0, len(reached))
		for _, milestone := range reached {
			views = append(views, MilestoneView{
				ID:           milestone.ID,
				DayThreshold: milestone.DayThreshold,
				XP:           milestone.XP,
				Badge:        milestone.Badge,
			})
		}
		return nil, MilestonePreviewResult{ElapsedDays: elapsed, Reached: views}, nil
	}
}

// CursorListTool defines the MCP tool schema for cursor listing.
func CursorListTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "cursor_list",
		Description: "Lists every tracked scope's persisted progress cursor",
	}
}

// CursorListHandler lists the persisted cursors.
func CursorListHandler(cursors storage.CursorStore) mcp.ToolHandlerFor[CursorListInput, CursorListResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ CursorListInput) (*mcp.CallToolResult, CursorListResult, error) {
		records, err := cursors.ListCursors(ctx)
		if err != nil {
			return nil, CursorListResult{}, fmt.Errorf("list cursors: %w", err)
		}
		views := make([]CursorView, 0, len(records))
		for _, record := range records {
			views = append(views, CursorView{
				ScopeKind: record.ScopeKind,
				ScopeID:   record.ScopeID,
				Value:     record.Value,
				UpdatedAt: record.UpdatedAt.UTC().Format(time.RFC3339),
			})
		}
		return nil, CursorListResult{Cursors: views}, nil
	}
}

// CelebrationListTool defines the MCP tool schema for celebration listing.
func CelebrationListTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "celebration_list",
		Description: "Lists recent celebrations, optionally filtered to one scope",
	}
}

// CelebrationListHandler lists persisted celebrations newest-first.
func CelebrationListHandler(celebrations storage.CelebrationStore) mcp.ToolHandlerFor[CelebrationListInput, CelebrationListResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CelebrationListInput) (*mcp.CallToolResult, CelebrationListResult, error) {
		limit := input.Limit
		if limit <= 0 {
			limit = defaultCelebrationListLimit
		}

		var records []storage.CelebrationRecord
		var err error
		scopeKind := strings.TrimSpace(input.ScopeKind)
		scopeID := strings.TrimSpace(input.ScopeID)
		switch {
		case scopeKind != "" && scopeID != "":
			if _, err := progression.ParseScopeKind(scopeKind); err != nil {
				return nil, CelebrationListResult{}, err
			}
			records, err = celebrations.ListCelebrationsByScope(ctx, scopeKind, scopeID, limit)
		case scopeKind == "" && scopeID == "":
			records, err = celebrations.ListRecentCelebrations(ctx, limit)
		default:
			return nil, CelebrationListResult{}, fmt.Errorf("scope_kind and scope_id must be provided together")
		}
		if err != nil {
			return nil, CelebrationListResult{}, fmt.Errorf("list celebrations: %w", err)
		}

		views := make([]CelebrationView, 0, len(records))
		for _, record := range records {
			views = append(views, CelebrationView{
				ID:           record.ID,
				ScopeKind:    record.ScopeKind,
				ScopeID:      record.ScopeID,
				Kind:         record.Kind,
				OldValue:     record.OldValue,
				NewValue:     record.NewValue,
				PreviousTier: record.PreviousTier,
				CurrentTier:  record.CurrentTier,
				Multiplier:   record.Multiplier,
				FiredAt:      record.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		return nil, CelebrationListResult{Celebrations: views}, nil
	}
}
