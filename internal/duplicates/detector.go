package duplicates

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/temirov/repogov/internal/inventory"
	"github.com/temirov/repogov/internal/risk"
)

const (
	// NameDuplicatePoints is added once to every member of a name group.
	NameDuplicatePoints = 3
	// DescriptionDuplicatePoints is added once to every member of a description group.
	DescriptionDuplicatePoints = 4

	minimumGroupSizeConstant = 2
)

// Signal names the evidence a duplicate group was built from.
type Signal string

// Duplicate signals.
const (
	SignalName        Signal = "name"
	SignalDescription Signal = "description"
	SignalContent     Signal = "content"
)

// Group lists repositories sharing one normalized key.
type Group struct {
	Signal  Signal   `json:"signal"`
	Key     string   `json:"key"`
	Members []string `json:"members"`
}

// Detection holds the groups found in one snapshot.
type Detection struct {
	NameGroups        []Group `json:"name_groups"`
	DescriptionGroups []Group `json:"description_groups"`
}

// Detect groups repositories by normalized name and by description hash. Empty descriptions never
// form a group.
func Detect(records []inventory.RepositoryRecord) Detection {
	nameMembers := make(map[string][]string)
	descriptionMembers := make(map[string][]string)
	for _, record := range records {
		nameKey := NormalizeName(record.Name)
		nameMembers[nameKey] = append(nameMembers[nameKey], record.Name)

		if descriptionKey, hasDescription := DescriptionKey(record.Description); hasDescription {
			descriptionMembers[descriptionKey] = append(descriptionMembers[descriptionKey], record.Name)
		}
	}
	return Detection{
		NameGroups:        collectGroups(SignalName, nameMembers),
		DescriptionGroups: collectGroups(SignalDescription, descriptionMembers),
	}
}

// NormalizeName lowercases and trims a repository name for grouping.
func NormalizeName(repositoryName string) string {
	return strings.ToLower(strings.TrimSpace(repositoryName))
}

// DescriptionKey returns the hex SHA-256 of the normalized description and whether the description
// is eligible for grouping.
func DescriptionKey(description string) (string, bool) {
	normalized := strings.TrimSpace(strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(description))
	if len(normalized) == 0 {
		return "", false
	}
	return HashBytes([]byte(normalized)), true
}

// HashBytes returns the hex SHA-256 digest of the payload.
func HashBytes(payload []byte) string {
	digest := sha256.Sum256(payload)
	return hex.EncodeToString(digest[:])
}

// Apply folds duplicate adjustments into the assessments and re-derives each category. The input
// slice is not modified.
func Apply(assessments []risk.RiskAssessment, detection Detection) []risk.RiskAssessment {
	nameDuplicates := memberSet(detection.NameGroups)
	descriptionDuplicates := memberSet(detection.DescriptionGroups)

	adjusted := make([]risk.RiskAssessment, 0, len(assessments))
	for _, assessment := range assessments {
		repositoryName := assessment.Repository.Name
		if _, duplicated := nameDuplicates[repositoryName]; duplicated {
			assessment = assessment.WithAdjustment(risk.RuleNameDuplicate, NameDuplicatePoints)
		}
		if _, duplicated := descriptionDuplicates[repositoryName]; duplicated {
			assessment = assessment.WithAdjustment(risk.RuleDescriptionDuplicate, DescriptionDuplicatePoints)
		}
		adjusted = append(adjusted, assessment)
	}
	return adjusted
}

// Rank orders assessments by score descending, then age descending, then name. The input slice is
// not modified.
func Rank(assessments []risk.RiskAssessment) []risk.RiskAssessment {
	ranked := append([]risk.RiskAssessment{}, assessments...)
	sort.SliceStable(ranked, func(leftIndex int, rightIndex int) bool {
		left := ranked[leftIndex]
		right := ranked[rightIndex]
		if left.RiskScore != right.RiskScore {
			return left.RiskScore > right.RiskScore
		}
		if left.AgeDays != right.AgeDays {
			return left.AgeDays > right.AgeDays
		}
		leftLowered := strings.ToLower(left.Repository.Name)
		rightLowered := strings.ToLower(right.Repository.Name)
		if leftLowered != rightLowered {
			return leftLowered < rightLowered
		}
		return left.Repository.Name < right.Repository.Name
	})
	return ranked
}

func memberSet(groups []Group) map[string]struct{} {
	members := make(map[string]struct{})
	for _, group := range groups {
		for _, member := range group.Members {
			members[member] = struct{}{}
		}
	}
	return members
}

func collectGroups(signal Signal, membersByKey map[string][]string) []Group {
	groups := make([]Group, 0)
	for key, members := range membersByKey {
		uniqueMembers := uniqueSorted(members)
		if len(uniqueMembers) < minimumGroupSizeConstant {
			continue
		}
		groups = append(groups, Group{Signal: signal, Key: key, Members: uniqueMembers})
	}
	sort.Slice(groups, func(leftIndex int, rightIndex int) bool {
		return groups[leftIndex].Key < groups[rightIndex].Key
	})
	return groups
}

func uniqueSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	unique := make([]string, 0, len(values))
	for _, value := range values {
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		unique = append(unique, value)
	}
	sort.Strings(unique)
	return unique
}
