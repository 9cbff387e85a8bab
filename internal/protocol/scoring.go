package protocol

import (
	"math/big"

	"github.com/quorumlabs/adjudicator/internal/domain"
)

// settlementScore combines staked backing and delegate conviction into a
// Sybil-resistant score. The stake term takes the square root of the backing
// in whole tokens, so splitting one balance across many addresses gains
// nothing from the stake itself, and multiplies by the backer count capped
// at MaxScoredBackers, so fanning out to thousands of dust addresses stops
// paying after ten. Whole-token truncation means dust below one token scores
// zero.
//
// score = (sqrt(stakeWhole) * min(backers, cap) * stakeWeight
//          + votes * voteUnit * voteWeight) / BasisPoints
func settlementScore(stake *big.Int, backers int, votes int) *big.Int {
	whole := new(big.Int).Div(stake, domain.TokenUnit)
	root := new(big.Int).Sqrt(whole)

	capped := int64(backers)
	if capped > domain.MaxScoredBackers {
		capped = domain.MaxScoredBackers
	}

	stakeTerm := new(big.Int).Mul(root, big.NewInt(capped))
	stakeTerm.Mul(stakeTerm, big.NewInt(domain.StakeScoreWeightBps))

	voteTerm := big.NewInt(int64(votes) * domain.VoteScoreUnit)
	voteTerm.Mul(voteTerm, big.NewInt(domain.VoteScoreWeightBps))

	score := stakeTerm.Add(stakeTerm, voteTerm)
	return score.Div(score, big.NewInt(domain.BasisPoints))
}

// resolutionScore scores the original proposal: its supporting stake and
// participant count plus revealed delegate votes in favor.
func resolutionScore(r *domain.Resolution) *big.Int {
	return settlementScore(r.SupportStake, r.Supporters, r.VotesFor)
}

// disputeScore scores one dispute: its backing stake and backer count plus
// delegate endorsements.
func disputeScore(d *domain.Dispute) *big.Int {
	return settlementScore(d.SupportStake, d.Supporters, d.Endorsements)
}

// pickWinningDispute evaluates active disputes in filing order and returns
// the index of the winner, or -1 when the resolution stands. A dispute wins
// only with a score strictly above both the resolution's score and every
// earlier dispute's score; on an exact tie the earlier-filed dispute
// prevails.
func pickWinningDispute(r *domain.Resolution, disputes []*domain.Dispute) int {
	resScore := resolutionScore(r)
	best := -1
	var bestScore *big.Int
	for i, d := range disputes {
		if d.Status != domain.DisputeActive {
			continue
		}
		s := disputeScore(d)
		if s.Cmp(resScore) <= 0 {
			continue
		}
		if bestScore == nil || s.Cmp(bestScore) > 0 {
			best = i
			bestScore = s
		}
	}
	return best
}
