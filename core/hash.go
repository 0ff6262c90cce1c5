package core

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ComputeResultsDigest hashes evaluation results into a stable hex string.
// Identical runs produce identical digests, which is what sealed records and
// rerun checks compare against.
//
// Formula: SHA256(lot_1 + "\n" + lot_2 + ...) in CompareLotIDs order, where
// each lot is "lot:%q id" followed by one line per row:
// "%q name|<own>|%.6f amount|%.6f tech|%.6f eco|%.6f final|<qualifies>|<winner>"
// Ids and names are quoted so separators inside them cannot shift fields.
func ComputeResultsDigest(results LotResults) string {
	var b strings.Builder
	for _, lotID := range results.SortLotIDs() {
		fmt.Fprintf(&b, "lot:%q\n", lotID)
		for _, r := range results[lotID] {
			fmt.Fprintf(&b, "%q|%t|%.6f|%.6f|%.6f|%.6f|%t|%t\n",
				r.Participant.Name, r.Participant.IsOwnCompany,
				r.Amount, r.TechnicalScore, r.EconomicScore, r.FinalScore,
				r.Qualifies, r.IsWinner)
		}
	}
	hash := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%x", hash)
}

// ComputeParametersDigest hashes the evaluation parameters.
//
// Formula: SHA256(method|knobs|scores|lot scores|disqualified|rule) with every
// map rendered as sorted "%q key:value" pairs, names and lot ids quoted and
// numbers at 6 decimal places.
func ComputeParametersDigest(params EvaluationParameters) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%.6f|%.6f|%.6f|%.6f|%.6f",
		params.Method, params.TechMax, params.TechMin, params.EcoMax, params.WeightTech, params.WeightEco)

	b.WriteString("|scores")
	writeSortedScores(&b, params.TechnicalScores)

	lotIDs := make([]string, 0, len(params.LotTechnicalScores))
	for lotID := range params.LotTechnicalScores {
		lotIDs = append(lotIDs, lotID)
	}
	sort.Slice(lotIDs, func(i, j int) bool { return CompareLotIDs(lotIDs[i], lotIDs[j]) < 0 })
	for _, lotID := range lotIDs {
		fmt.Fprintf(&b, "|lot:%q", lotID)
		writeSortedScores(&b, params.LotTechnicalScores[lotID])
	}

	disqualified := make([]string, 0, len(params.Disqualified))
	for _, name := range params.Disqualified {
		disqualified = append(disqualified, NameKey(name))
	}
	sort.Strings(disqualified)
	for i, name := range disqualified {
		disqualified[i] = strconv.Quote(name)
	}
	fmt.Fprintf(&b, "|disqualified:%s|single_lot:%t", strings.Join(disqualified, ","), params.ApplySingleLotRule)

	hash := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%x", hash)
}

func writeSortedScores(b *strings.Builder, scores map[string]float64) {
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(b, "|%q:%.6f", name, scores[name])
	}
}
