// Package tonal trains and serves a sentiment model that scores short texts
// in [-1, 1].
//
// Quick start:
//
//	t, err := tonal.New(
//	    tonal.WithModelDir("models/"),
//	    tonal.WithExamples(examples),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if !t.Train(ctx) {
//	    log.Fatal("training failed")
//	}
//	scores, _ := t.Predict(ctx, []string{"I love this"})
//	fmt.Println(scores[0] > 0) // true
//
// A Tonal instance is safe for concurrent use. Predictions keep running
// against the previous model while a new one trains.
package tonal
