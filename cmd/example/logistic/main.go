package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gorgonia/reptile"
	"github.com/gorgonia/reptile/encoding/plot"
	"github.com/gorgonia/reptile/fcn"
	"github.com/gorgonia/reptile/task"
)

const (
	sampleRadius = 4
	sampleCount  = 100
	modelWidth   = 32
	evalRange    = 10
)

func main() {
	space, err := task.Space(sampleRadius, sampleCount)
	if err != nil {
		log.Fatalf("%+v", err)
	}
	sampler := task.NewSampler(space, time.Now().UnixNano())

	model := fcn.New(fcn.DefaultConf(modelWidth))
	if err := model.Init(); err != nil {
		log.Fatalf("%+v", err)
	}

	history := reptile.NewHistory()
	conf := reptile.DefaultConf()
	conf.Name = "logistic"
	conf.Metrics = history

	r := reptile.New(model, sampler, conf)
	if err := r.Train(task.Logistic); err != nil {
		log.Fatalf("%+v", err)
	}
	if err := r.Save("logistic.model"); err != nil {
		log.Fatalf("%+v", err)
	}

	// measure few-shot adaptation over 1..evalRange shot counts
	evalMSE := make([][]float32, evalRange)
	for i := range evalMSE {
		evalMSE[i] = make([]float32, conf.EvalBatchSize)
	}

	var lastTargets []float32
	var lastTrace [][]float32
	for batch := 0; batch < conf.EvalBatchSize; batch++ {
		targets, θ, err := sampler.Sample(task.Logistic)
		if err != nil {
			log.Fatalf("%+v", err)
		}
		log.Printf("evaluation batch %d: θ %v", batch, θ)

		for shots := 1; shots <= evalRange; shots++ {
			trace, loss, err := r.Eval(targets, shots, conf.EvalIterations, conf.InnerStepSize)
			if err != nil {
				log.Fatalf("%+v", err)
			}
			evalMSE[shots-1][batch] = loss
			history.Record(fmt.Sprintf("eval/%d_shots", shots), batch, loss)
			lastTargets, lastTrace = targets, trace
		}
	}

	out, err := os.Create("trace.gif")
	if err != nil {
		log.Fatalf("%+v", err)
	}
	enc := plot.NewEncoder(240, 320)
	enc.Writer = out
	if err := reptile.EncodeTrace(enc, conf.Name, space, lastTargets, lastTrace); err != nil {
		log.Fatalf("%+v", err)
	}
	if err := enc.Flush(); err != nil {
		log.Fatalf("%+v", err)
	}
	out.Close()

	if err := history.Dump("history.csv"); err != nil {
		log.Fatalf("%+v", err)
	}

	for i, row := range evalMSE {
		var sum float32
		for _, v := range row {
			sum += v
		}
		fmt.Printf("%2d shots: mean evaluation loss %v\n", i+1, sum/float32(len(row)))
	}
}
