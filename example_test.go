package clipper_test

import (
	"fmt"
	"log"

	clipper "github.com/tphakala/go-audio-clipper"
)

func ExampleEngine() {
	e := clipper.New()
	if err := e.Prepare(48000, 256, 2); err != nil {
		log.Fatal(err)
	}
	e.SetCeilingDB(-6)
	e.SetStereoLink(true)

	block := clipper.NewAudioBlock(2, 1)
	block.Channels[0][0] = 1.5
	block.Channels[1][0] = 0.3
	info := e.Process(block)

	fmt.Printf("latency %d, announced %v\n", info.Latency, info.LatencyChanged)
	fmt.Printf("L %.4f R %.4f\n", block.Channels[0][0], block.Channels[1][0])
	// Output:
	// latency 0, announced true
	// L 0.5012 R 0.1002
}

func ExampleEngine_SetOversamplingIndex() {
	e := clipper.New()
	e.SetFilterType(clipper.LinearPhase)

	for index := range 4 {
		e.SetOversamplingIndex(index)
		fmt.Printf("%2d× latency %d\n", 1<<index, e.LatencyInSamples())
	}
	// Output:
	//  1× latency 0
	//  2× latency 57
	//  4× latency 64
	//  8× latency 67
}

func ExampleEngine_ProcessInterleaved() {
	e := clipper.New()
	if err := e.Prepare(44100, 64, 2); err != nil {
		log.Fatal(err)
	}
	e.SetDeltaMonitor(true)

	frames := []float64{1.5, 0.5, -2, 0.25}
	e.ProcessInterleaved(frames, 2)

	fmt.Println(frames)
	// Output:
	// [0.5 0 -1 0]
}
