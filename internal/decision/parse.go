// Package decision turns decision-source output into action descriptors and
// provides the built-in decision sources.
package decision

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xtrntr/farmduel/internal/models"
)

var descriptorRe = regexp.MustCompile(`(?im)(\d+)\.?[ \t]+(Plant|Harvest|Wait|Maintenance|Sell|Buy|Sabotage)(?:[ \t]+(\w+))?(?:[ \t]+(\d+))?[ \t\r]*$`)

// Parse extracts the last descriptor line of a free-text response, such as
// "4 Sell Wheat 2". Anything it cannot read becomes Maintenance along with
// an ErrInvalidDescriptor error.
func Parse(text string) (models.Action, error) {
	matches := descriptorRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return models.Action{Kind: models.Maintenance}, fmt.Errorf("%w: no decision line", models.ErrInvalidDescriptor)
	}
	m := matches[len(matches)-1]
	crop := canonicalCrop(m[3])

	var amount int
	if m[4] != "" {
		amount, _ = strconv.Atoi(m[4])
	}

	var a models.Action
	switch strings.ToLower(m[2]) {
	case "plant":
		a = models.Action{Kind: models.Plant, CropType: crop}
	case "harvest":
		a = models.Action{Kind: models.Harvest}
	case "wait", "maintenance":
		a = models.Action{Kind: models.Maintenance}
	case "sell":
		a = models.Action{Kind: models.SellCrops, CropType: crop, Amount: amount}
	case "buy":
		a = models.Action{Kind: models.BuyCrops, CropType: crop, Amount: amount}
	case "sabotage":
		a = models.Action{Kind: models.Sabotage}
	}

	if (a.Kind == models.Plant || a.Kind == models.SellCrops || a.Kind == models.BuyCrops) && crop == "" {
		return models.Action{Kind: models.Maintenance}, fmt.Errorf("%w: %s without crop type", models.ErrInvalidDescriptor, a.Kind)
	}
	if (a.Kind == models.SellCrops || a.Kind == models.BuyCrops) && amount <= 0 {
		return models.Action{Kind: models.Maintenance}, fmt.Errorf("%w: %s without amount", models.ErrInvalidDescriptor, a.Kind)
	}
	if a.Kind.Number() != mustAtoi(m[1]) {
		return models.Action{Kind: models.Maintenance}, fmt.Errorf("%w: %q does not match option %s", models.ErrInvalidDescriptor, m[0], m[1])
	}
	return a, nil
}

func mustAtoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}

// canonicalCrop title-cases a crop word ("wheat" -> "Wheat")
func canonicalCrop(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
