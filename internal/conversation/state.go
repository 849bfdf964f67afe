// Package conversation drives the screening dialogue: it validates and
// records candidate answers, walks the state machine and decides when to
// hand a message to the LLM.
package conversation

// State is a stage of the screening conversation.
type State string

const (
	StateInitial             State = "initial"
	StateDataCollection      State = "data_collection"
	StateTechnicalAssessment State = "technical_assessment"
	StateFeedback            State = "feedback"
	StateCompletion          State = "completion"
	StateFollowUp            State = "follow_up"
	StateGeneralChat         State = "general_chat"
)

var transitions = map[State][]State{
	StateInitial:             {StateDataCollection, StateGeneralChat},
	StateDataCollection:      {StateTechnicalAssessment, StateGeneralChat},
	StateTechnicalAssessment: {StateFeedback, StateGeneralChat},
	StateFeedback:            {StateCompletion, StateGeneralChat},
	StateCompletion:          {StateFollowUp, StateGeneralChat},
	StateFollowUp:            {StateGeneralChat},
	StateGeneralChat: {
		StateInitial, StateDataCollection, StateTechnicalAssessment,
		StateFeedback, StateCompletion,
	},
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Closed reports whether the screening part of the conversation is over.
func (s State) Closed() bool {
	return s == StateCompletion || s == StateFollowUp
}

// CanTransition reports whether the machine may move from one state to
// another. Staying put is always allowed, as are restarts to initial and
// early exits to completion.
func CanTransition(from, to State) bool {
	if from == to || to == StateInitial || to == StateCompletion {
		return from.Valid() && to.Valid()
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
