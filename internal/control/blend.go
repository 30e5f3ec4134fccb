package control

// Blend merges the avoidance decision with the stabilization bias into the
// final motor command. The vertical channel carries the stabilization bias
// unless the decision mandates its own vertical action, in which case the
// mandate wins outright. The horizontal channel is the decision's surge
// verbatim. Both channels are clamped to the legal range.
func Blend(d Decision, stabBiasPct float64) MotorCommand {
	heave := stabBiasPct
	if d.HeaveForced {
		heave = d.HeavePct
	}
	return MotorCommand{
		SurgePct: clamp(d.SurgePct, -maxChannelPct, maxChannelPct),
		HeavePct: clamp(heave, -maxChannelPct, maxChannelPct),
	}
}
