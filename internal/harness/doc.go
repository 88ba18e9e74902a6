// Package harness replays scripted gesture scenarios against a real
// Controller and compares the resulting trace with golden files.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: pan_clamp_on_release
//	description: "A pan past the edge settles back to the bound"
//	image: { width: 400, height: 400 }
//	file_id: img-1
//	viewport_width: 300
//	saved: { scale: 1, translate_x: 0, translate_y: 0 }   # optional
//	limits: { min_scale: 0.5, max_scale: 5, enforce_cover: true } # optional
//	steps:
//	  - kind: pan_update
//	    dx: 500
//	    expect: { translate_x: 500 }
//	  - kind: pan_end
//	    expect: { translate_x: 50 }
//	  - kind: capture
//	expect: { scale: 1, translate_x: 50, translate_y: 0 }
//
// Step kinds are the gesture kinds (pan_begin, pan_update, pan_end,
// pinch_begin, pinch_update, pinch_end, reset) plus capture. An expect
// clause may name an error code instead of transform fields.
//
// # Deterministic Testing
//
// Each scenario runs against a fresh in-memory store, a synthetic image
// source and an in-memory output sink. Trace events are numbered by a
// logical clock, so identical scenarios produce identical traces.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/pan_clamp.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if !result.Pass {
//	    for _, e := range result.Errors {
//	        log.Println(e)
//	    }
//	}
package harness
