package agent

import (
	"github.com/felixgeelhaar/statekit"
)

const (
	stateReasoning statekit.StateID = "reasoning"
	stateActing    statekit.StateID = "acting"
	stateObserving statekit.StateID = "observing"
	stateDone      statekit.StateID = "done"
	stateFailed    statekit.StateID = "failed"
)

const (
	eventAct      statekit.EventType = "ACT"
	eventCorrect  statekit.EventType = "CORRECT"
	eventFinish   statekit.EventType = "FINISH"
	eventObserve  statekit.EventType = "OBSERVE"
	eventContinue statekit.EventType = "CONTINUE"
	eventExhaust  statekit.EventType = "EXHAUST"
	eventAbort    statekit.EventType = "ABORT"
)

// run is the statechart context for a single loop invocation.
type run struct {
	maxIterations int
	iterations    int
	pending       Step
	steps         []Step
	finalText     string
	outcome       Outcome
}

func newMachine() (*statekit.MachineConfig[*run], error) {
	return statekit.NewMachine[*run]("agent").
		WithInitial(stateReasoning).
		WithContext(&run{}).
		WithAction("startStep", startStep).
		WithAction("setObservation", setObservation).
		WithAction("commitStep", commitStep).
		WithAction("recordFinal", recordFinal).
		WithAction("recordExhausted", recordExhausted).
		WithAction("recordAbort", recordAbort).
		WithGuard("belowCeiling", belowCeiling).
		State(stateReasoning).
		On(eventAct).Target(stateActing).Do("startStep").
		On(eventCorrect).Target(stateObserving).Do("startStep").
		On(eventFinish).Target(stateDone).Do("recordFinal").
		On(eventAbort).Target(stateFailed).Do("recordAbort").
		Done().
		State(stateActing).
		On(eventObserve).Target(stateObserving).Do("setObservation").
		On(eventAbort).Target(stateFailed).Do("recordAbort").
		Done().
		State(stateObserving).
		On(eventContinue).Target(stateReasoning).Guard("belowCeiling").Do("commitStep").
		On(eventExhaust).Target(stateFailed).Do("recordExhausted").
		On(eventAbort).Target(stateFailed).Do("recordAbort").
		Done().
		State(stateDone).
		Final().
		Done().
		State(stateFailed).
		Final().
		Done().
		Build()
}

// startStep holds the parsed step until its observation is known. A
// corrective step arrives with its observation already set.
func startStep(c **run, event statekit.Event) {
	if step, ok := event.Payload.(Step); ok {
		(*c).pending = step
	}
}

func setObservation(c **run, event statekit.Event) {
	if observation, ok := event.Payload.(string); ok {
		(*c).pending.Observation = observation
	}
}

func commitStep(c **run, _ statekit.Event) {
	r := *c
	r.steps = append(r.steps, r.pending)
	r.pending = Step{}
}

func recordFinal(c **run, event statekit.Event) {
	r := *c
	if text, ok := event.Payload.(string); ok {
		r.finalText = text
	}
	r.outcome = OutcomeDone
}

func recordExhausted(c **run, event statekit.Event) {
	commitStep(c, event)
	r := *c
	r.finalText = ExhaustedMessage
	r.outcome = OutcomeExhausted
}

func recordAbort(c **run, event statekit.Event) {
	if outcome, ok := event.Payload.(Outcome); ok {
		(*c).outcome = outcome
	}
}

func belowCeiling(c *run, _ statekit.Event) bool {
	return c.iterations < c.maxIterations
}
