package types

import "strconv"

// ReactiveWorkloadCategory is the category of CommunicatingAndTriggeredReactiveWorkload.
const ReactiveWorkloadCategory = "CommunicatingAndTriggeredReactiveWorkload"

// TriggerLabel labels trigger-graph relations in a reactive workload header.
const TriggerLabel = "trigger"

// ReactiveWorkload is a decision model for communicating, periodically or
// event-triggered reactive tasks. Parallel slices are indexed together: the
// i-th entries of DataGraphSrc, DataGraphDst and DataGraphMessageSize describe
// one data edge.
type ReactiveWorkload struct {
	Tasks                     []string                       `json:"tasks" msgpack:"tasks"`
	TaskSizes                 []uint32                       `json:"task_sizes" msgpack:"task_sizes"`
	TaskComputationalNeeds    []map[string]map[string]uint32 `json:"task_computational_needs" msgpack:"task_computational_needs"`
	DataChannels              []string                       `json:"data_channels" msgpack:"data_channels"`
	DataChannelSizes          []uint32                       `json:"data_channel_sizes" msgpack:"data_channel_sizes"`
	DataGraphSrc              []string                       `json:"data_graph_src" msgpack:"data_graph_src"`
	DataGraphDst              []string                       `json:"data_graph_dst" msgpack:"data_graph_dst"`
	DataGraphMessageSize      []uint32                       `json:"data_graph_message_size" msgpack:"data_graph_message_size"`
	PeriodicSources           []string                       `json:"periodic_sources" msgpack:"periodic_sources"`
	PeriodsNumerator          []uint32                       `json:"periods_numerator" msgpack:"periods_numerator"`
	PeriodsDenominator        []uint32                       `json:"periods_denominator" msgpack:"periods_denominator"`
	OffsetsNumerator          []uint32                       `json:"offsets_numerator" msgpack:"offsets_numerator"`
	OffsetsDenominator        []uint32                       `json:"offsets_denominator" msgpack:"offsets_denominator"`
	Upsamples                 []string                       `json:"upsamples" msgpack:"upsamples"`
	UpsampleRepetitiveHolds   []uint32                       `json:"upsample_repetitive_holds" msgpack:"upsample_repetitive_holds"`
	UpsampleInitialHolds      []uint32                       `json:"upsample_initial_holds" msgpack:"upsample_initial_holds"`
	Downsamples               []string                       `json:"downsamples" msgpack:"downsamples"`
	DownsampleRepetitiveSkips []uint32                       `json:"downample_repetitive_skips" msgpack:"downample_repetitive_skips"`
	DownsampleInitialSkips    []uint32                       `json:"downample_initial_skips" msgpack:"downample_initial_skips"`
	TriggerGraphSrc           []string                       `json:"trigger_graph_src" msgpack:"trigger_graph_src"`
	TriggerGraphDst           []string                       `json:"trigger_graph_dst" msgpack:"trigger_graph_dst"`
	HasOrTriggerSemantics     []string                       `json:"has_or_trigger_semantics" msgpack:"has_or_trigger_semantics"`
}

// UniqueIdentifier implements DecisionModel.
func (w *ReactiveWorkload) UniqueIdentifier() string {
	return ReactiveWorkloadCategory
}

// Header covers every task, channel, source, upsample and downsample. Data
// edges are labelled with their message size, trigger edges with TriggerLabel.
func (w *ReactiveWorkload) Header() DecisionHeader {
	elems := make([]string, 0, len(w.Tasks)+len(w.DataChannels)+len(w.PeriodicSources)+len(w.Upsamples)+len(w.Downsamples))
	elems = append(elems, w.Tasks...)
	elems = append(elems, w.DataChannels...)
	elems = append(elems, w.PeriodicSources...)
	elems = append(elems, w.Upsamples...)
	elems = append(elems, w.Downsamples...)

	rels := make([]LabelledArc, 0, len(w.DataGraphSrc)+len(w.TriggerGraphSrc))
	for i := range w.DataGraphSrc {
		if i >= len(w.DataGraphDst) {
			break
		}
		arc := Arc(w.DataGraphSrc[i], w.DataGraphDst[i])
		if i < len(w.DataGraphMessageSize) {
			arc = arc.WithLabel(strconv.FormatUint(uint64(w.DataGraphMessageSize[i]), 10))
		}
		rels = append(rels, arc)
	}
	for i := range w.TriggerGraphSrc {
		if i >= len(w.TriggerGraphDst) {
			break
		}
		rels = append(rels, Arc(w.TriggerGraphSrc[i], w.TriggerGraphDst[i]).WithLabel(TriggerLabel))
	}

	return DecisionHeader{
		Category:         w.UniqueIdentifier(),
		CoveredElements:  elems,
		CoveredRelations: rels,
	}.Normalize()
}

var _ DecisionModel = (*ReactiveWorkload)(nil)
