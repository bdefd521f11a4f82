package family

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sahaya-health/adherence-platform/pkg/adherence"
	"github.com/sahaya-health/adherence-platform/pkg/common/models"
	"github.com/sahaya-health/adherence-platform/pkg/cultural"
	"github.com/sahaya-health/adherence-platform/pkg/prediction"
)

// weekendDisruptionThreshold marks a member's weekend/weekday adherence
// ratio as a routine disruption.
const weekendDisruptionThreshold = 0.65

// Coordination pattern labels.
const (
	PatternCentralized  = "centralized"
	PatternDistributed  = "distributed"
	PatternHierarchical = "hierarchical"
	PatternPeerToPeer   = "peer-to-peer"
)

// MemberData bundles everything the aggregator needs for one household
// member. The aggregator owns no event data itself.
type MemberData struct {
	Member  models.FamilyMember
	Profile models.PatientCulturalProfile
	Events  []models.AdherenceEvent
}

// memberStats is the per-member scatter result folded into the analysis.
type memberStats struct {
	member         models.FamilyMember
	profile        models.PatientCulturalProfile
	adherenceRate  float64
	score          models.CulturalScore
	features       prediction.FeatureVector
	eventCount     int
	remindersFrom  map[string]int // giver -> count of reminders received
	remindersTaken map[string]int // giver -> reminded doses actually taken
	fastingEvents  int
	supportEvents  int
	modalHour      int
}

// Aggregator composes per-member adherence and cultural scores into
// household-level coordination, support and generational insights.
type Aggregator struct {
	scorer    *cultural.Scorer
	extractor *prediction.Extractor
	policy    cultural.ScoringPolicy
}

func NewAggregator(policy cultural.ScoringPolicy) *Aggregator {
	scorer := cultural.NewScorer(policy)
	return &Aggregator{
		scorer:    scorer,
		extractor: prediction.NewExtractor(scorer),
		policy:    policy,
	}
}

// Analyze fans the per-member computations out across goroutines (each is
// pure over its own snapshot) and folds the results synchronously. Fewer
// than two members yields documented defaults, not an error.
func (a *Aggregator) Analyze(familyID string, members []MemberData) models.FamilyDynamicsAnalysis {
	analysis := models.FamilyDynamicsAnalysis{
		FamilyID:            familyID,
		MemberCount:         len(members),
		CoordinationPattern: PatternDistributed,
		GeneratedAt:         time.Now().UTC(),
	}
	if len(members) < 2 {
		return analysis
	}

	stats := make([]memberStats, len(members))
	var wg sync.WaitGroup
	for i, member := range members {
		wg.Add(1)
		go func(idx int, data MemberData) {
			defer wg.Done()
			stats[idx] = a.memberStats(data, analysis.GeneratedAt)
		}(i, member)
	}
	wg.Wait()

	analysis.SupportNetwork = supportNetwork(stats)
	analysis.CoordinationPattern = a.coordinationPattern(stats)
	analysis.CommunicationEffectiveness = communicationEffectiveness(stats)
	analysis.HierarchyRespect = a.hierarchyRespect(stats)
	analysis.CulturalInfluences = culturalInfluences(stats)
	analysis.CollectiveBehaviors = collectiveBehaviors(stats)
	analysis.Generations = generations(stats)
	return analysis
}

func (a *Aggregator) memberStats(data MemberData, asOf time.Time) memberStats {
	stats := memberStats{
		member:         data.Member,
		profile:        data.Profile,
		adherenceRate:  adherence.Rate(data.Events),
		score:          a.scorer.Score(data.Profile, data.Events),
		features:       a.extractor.Extract(data.Profile, data.Events, asOf),
		eventCount:     len(data.Events),
		remindersFrom:  make(map[string]int),
		remindersTaken: make(map[string]int),
	}

	hours := make(map[int]int)
	for _, event := range data.Events {
		if event.RemindedBy != "" {
			stats.remindersFrom[event.RemindedBy]++
			if event.WasTaken() {
				stats.remindersTaken[event.RemindedBy]++
			}
		}
		if event.Cultural.FastingPeriod {
			stats.fastingEvents++
		}
		if event.Cultural.FamilySupport {
			stats.supportEvents++
		}
		hours[event.ScheduledTime.Hour()]++
	}

	best := -1
	for hour, count := range hours {
		if count > best || (count == best && hour < stats.modalHour) {
			best = count
			stats.modalHour = hour
		}
	}
	return stats
}

// reminderGivers returns every member id that issued at least one reminder.
func reminderGivers(stats []memberStats) map[string]int {
	givers := make(map[string]int)
	for _, s := range stats {
		for giver, count := range s.remindersFrom {
			givers[giver] += count
		}
	}
	return givers
}

func (a *Aggregator) coordinationPattern(stats []memberStats) string {
	givers := reminderGivers(stats)
	switch {
	case len(givers) == 0:
		return PatternDistributed
	case len(givers) == 1:
		for giver := range givers {
			if role := roleOf(stats, giver); role == "elderly" || role == "head" {
				return PatternHierarchical
			}
		}
		return PatternCentralized
	case len(givers)*2 >= len(stats):
		return PatternPeerToPeer
	default:
		return PatternDistributed
	}
}

func roleOf(stats []memberStats, patientID string) string {
	for _, s := range stats {
		if s.member.PatientID == patientID {
			return s.member.Role
		}
	}
	return ""
}

func supportNetwork(stats []memberStats) []models.SupportEdge {
	var edges []models.SupportEdge
	for _, s := range stats {
		for giver, count := range s.remindersFrom {
			strength := 0.0
			if s.eventCount > 0 {
				strength = float64(count) / float64(s.eventCount)
			}
			if strength > 1 {
				strength = 1
			}
			edges = append(edges, models.SupportEdge{
				From:     giver,
				To:       s.member.PatientID,
				Strength: strength,
			})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

// communicationEffectiveness is the ratio of members who both give and
// receive reminders. Zero active reminder-givers scores zero.
func communicationEffectiveness(stats []memberStats) float64 {
	givers := reminderGivers(stats)
	var active int
	for _, s := range stats {
		_, gives := givers[s.member.PatientID]
		receives := len(s.remindersFrom) > 0
		if gives && receives {
			active++
		}
	}
	return float64(active) / float64(len(stats))
}

// hierarchyRespect scores how the household honors its elder structure.
// An elder-led family starts from the elderly plus acting-head bonuses;
// followed elder reminders add up to ten more points.
func (a *Aggregator) hierarchyRespect(stats []memberStats) float64 {
	var score float64
	var elderIDs []string
	hasHead := false
	for _, s := range stats {
		switch s.member.Role {
		case "elderly":
			elderIDs = append(elderIDs, s.member.PatientID)
		case "head":
			hasHead = true
		}
	}

	if len(elderIDs) > 0 {
		score += a.policy.ElderlyHierarchyBonus
	}
	// The eldest member acts as household head when none is named.
	if hasHead || len(elderIDs) > 0 {
		score += a.policy.HeadHierarchyBonus
	}

	var elderReminders, elderFollowed int
	for _, s := range stats {
		for _, elder := range elderIDs {
			elderReminders += s.remindersFrom[elder]
			elderFollowed += s.remindersTaken[elder]
		}
	}
	if elderReminders > 0 {
		score += 10 * float64(elderFollowed) / float64(elderReminders)
	}

	if score > 100 {
		score = 100
	}
	return score
}

func culturalInfluences(stats []memberStats) []models.CulturalInfluence {
	var influences []models.CulturalInfluence
	for _, s := range stats {
		if s.member.Role == "elderly" && s.profile.Religion != "" {
			var affected []string
			for _, other := range stats {
				if other.member.PatientID != s.member.PatientID && other.profile.Religion == s.profile.Religion {
					affected = append(affected, other.member.PatientID)
				}
			}
			if len(affected) > 0 {
				influences = append(influences, models.CulturalInfluence{
					MemberID:        s.member.PatientID,
					Influence:       fmt.Sprintf("elder %s observance anchors the household dose schedule", s.profile.Religion),
					AffectedMembers: affected,
				})
			}
		}
		if s.profile.UsesTraditionalMedicine {
			influences = append(influences, models.CulturalInfluence{
				MemberID:  s.member.PatientID,
				Influence: "traditional medicine use shapes how doses are coordinated",
			})
		}
		if s.member.Role == "caregiver" {
			influences = append(influences, models.CulturalInfluence{
				MemberID:  s.member.PatientID,
				Influence: "caregiver routines set reminder timing for the household",
			})
		}
		if s.score.OverallScore < 60 && s.supportEvents > 0 {
			influences = append(influences, models.CulturalInfluence{
				MemberID:  s.member.PatientID,
				Influence: "household support is compensating for cultural friction in this member's regimen",
			})
		}
	}
	return influences
}

func collectiveBehaviors(stats []memberStats) []string {
	var behaviors []string

	hourCounts := make(map[int]int)
	for _, s := range stats {
		if s.eventCount > 0 {
			hourCounts[s.modalHour]++
		}
	}
	for _, count := range hourCounts {
		if count >= 2 {
			behaviors = append(behaviors, "synchronized meal-time dosing")
			break
		}
	}

	var fasting, supported, weekendDrops int
	for _, s := range stats {
		if s.fastingEvents > 0 {
			fasting++
		}
		if s.supportEvents > 0 {
			supported++
		}
		if s.eventCount > 0 && s.features.WeekdayWeekendRatio < weekendDisruptionThreshold {
			weekendDrops++
		}
	}
	if fasting >= 2 {
		behaviors = append(behaviors, "shared fasting-period adjustments")
	}
	if supported*2 >= len(stats) && supported > 0 {
		behaviors = append(behaviors, "household dose check-ins")
	}
	if weekendDrops >= 2 {
		behaviors = append(behaviors, "shared weekend routine disruption")
	}
	return behaviors
}

// generations buckets members by age and role, then reports per-generation
// adherence and share of reminder influence.
func generations(stats []memberStats) []models.GenerationInsight {
	buckets := map[string][]memberStats{}
	for _, s := range stats {
		buckets[generationOf(s.member)] = append(buckets[generationOf(s.member)], s)
	}

	givers := reminderGivers(stats)
	var totalReminders int
	for _, count := range givers {
		totalReminders += count
	}

	var insights []models.GenerationInsight
	for _, label := range []string{"child", "adult", "elderly"} {
		group, ok := buckets[label]
		if !ok {
			continue
		}
		insight := models.GenerationInsight{Generation: label}
		var rateSum float64
		var reminders int
		for _, s := range group {
			insight.MemberIDs = append(insight.MemberIDs, s.member.PatientID)
			rateSum += s.adherenceRate
			reminders += givers[s.member.PatientID]
		}
		insight.AdherenceRate = rateSum / float64(len(group))
		if totalReminders > 0 {
			insight.InfluenceScore = float64(reminders) / float64(totalReminders)
		}
		insights = append(insights, insight)
	}
	return insights
}

func generationOf(member models.FamilyMember) string {
	switch {
	case member.Role == "elderly" || member.Age >= 60:
		return "elderly"
	case member.Role == "child" || (member.Age > 0 && member.Age < 18):
		return "child"
	default:
		return "adult"
	}
}
