package systems

import (
	"testing"

	"github.com/pthm-cable/wealthsim/agents"
)

func TestTradeProbability(t *testing.T) {
	tests := []struct {
		dA, dB int
		want   float64
		trades bool
	}{
		{1, 1, 1, true},
		{3, 4, 0.5, true},
		{7, 5, 1.0 / 3, true},
		{1, 4, 0.25, false},
		{10, 1, 0.1, false},
	}

	minP := DefaultTradeParams().MinProbability
	for _, tt := range tests {
		got := TradeProbability(tt.dA, tt.dB)
		if got != tt.want {
			t.Errorf("TradeProbability(%d,%d) = %v, want %v", tt.dA, tt.dB, got, tt.want)
		}
		if (got > minP) != tt.trades {
			t.Errorf("deciles %d,%d trade = %v, want %v", tt.dA, tt.dB, got > minP, tt.trades)
		}
	}
}

func TestTrade_SameDecileAlwaysExecutes(t *testing.T) {
	pop := agents.NewPopulation()
	for i := 0; i < 20; i++ {
		pop.Spawn(1, 100, 100, 30, agents.StatusAlive)
	}

	sum := NewTradeEngine(testRNG(), DefaultTradeParams()).Trade(pop)

	if sum.Pairs != 10 || sum.Executed != 10 {
		t.Fatalf("pairs/executed = %d/%d, want 10/10", sum.Pairs, sum.Executed)
	}
	for _, a := range pop.Agents() {
		if !a.Step.Traded {
			t.Fatalf("agent %d not paired", a.ID)
		}
		partner := pop.Get(a.Step.TradePartner)
		if partner == nil || partner.Step.TradePartner != a.ID {
			t.Errorf("agent %d partner link not symmetric", a.ID)
		}
		if a.Step.TradeGain == 0 {
			t.Errorf("agent %d got zero gain from an executed trade", a.ID)
		}
	}
}

func TestTrade_DistantDecilesRecordedWithoutGain(t *testing.T) {
	pop := agents.NewPopulation()
	pop.Spawn(1, 100, 100, 30, agents.StatusAlive)
	pop.Spawn(9, 5000, 5000, 30, agents.StatusAlive)

	sum := NewTradeEngine(testRNG(), DefaultTradeParams()).Trade(pop)

	if sum.Pairs != 1 || sum.Executed != 0 {
		t.Fatalf("pairs/executed = %d/%d, want 1/0", sum.Pairs, sum.Executed)
	}
	for _, a := range pop.Agents() {
		if !a.Step.Traded || a.Step.TradeGain != 0 {
			t.Errorf("agent %d traded=%v gain=%v, want recorded pairing with zero gain",
				a.ID, a.Step.Traded, a.Step.TradeGain)
		}
	}
}

func TestTrade_SkipsNonAlive(t *testing.T) {
	pop := agents.NewPopulation()
	pop.Spawn(2, 100, 100, 30, agents.StatusDead)
	pop.Spawn(2, 100, 100, 30, agents.StatusNewborn)
	pop.Spawn(2, 100, 100, 30, agents.StatusMigrated)
	pop.Spawn(2, 100, 100, 30, agents.StatusAlive)

	sum := NewTradeEngine(testRNG(), DefaultTradeParams()).Trade(pop)

	if sum.Pairs != 0 {
		t.Errorf("pairs = %d, want 0", sum.Pairs)
	}
	for _, a := range pop.Agents() {
		if a.Step.Traded {
			t.Errorf("agent %d (%v) should not trade", a.ID, a.Status)
		}
	}
}

func TestTrade_OddAgentUnpaired(t *testing.T) {
	pop := agents.NewPopulation()
	for i := 0; i < 7; i++ {
		pop.Spawn(5, 100, 100, 30, agents.StatusAlive)
	}
	NewTradeEngine(testRNG(), DefaultTradeParams()).Trade(pop)

	unpaired := 0
	for _, a := range pop.Agents() {
		if !a.Step.Traded {
			unpaired++
		}
	}
	if unpaired != 1 {
		t.Errorf("unpaired = %d, want 1", unpaired)
	}
}

func TestTrade_GainBoundedByInvestment(t *testing.T) {
	pop := agents.NewPopulation()
	for i := 0; i < 200; i++ {
		pop.Spawn(4, 1000, 1000, 30, agents.StatusAlive)
	}
	// Zero variance return: gain = 1.1 * investment <= 1.1 * 0.75 * wealth.
	params := DefaultTradeParams()
	params.ReturnStdDev = 0
	NewTradeEngine(testRNG(), params).Trade(pop)

	for _, a := range pop.Agents() {
		if a.Step.TradeGain < 0 || a.Step.TradeGain > 1.1*0.75*1000+1e-9 {
			t.Errorf("agent %d gain %v outside [0, %v]", a.ID, a.Step.TradeGain, 1.1*0.75*1000)
		}
	}
}
