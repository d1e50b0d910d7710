package kalman

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

const eps = 1e-6

func TestInitiateMeanAndCovariance(t *testing.T) {
	f := NewFilter()
	z := Measurement{100, 200, 0.5, 40}
	mean, cov := f.Initiate(z)

	for i := 0; i < 4; i++ {
		if math.Abs(mean.AtVec(i)-z[i]) > eps {
			t.Errorf("mean[%d] = %v, want %v", i, mean.AtVec(i), z[i])
		}
	}
	for i := 4; i < 8; i++ {
		if mean.AtVec(i) != 0 {
			t.Errorf("mean[%d] = %v, want 0 (velocity starts at rest)", i, mean.AtVec(i))
		}
	}

	// position std = h/20 = 2 -> variance 4; aspect std = 1e-2 -> variance 1e-4
	// velocity std = h/160 = 0.25 -> variance 0.0625; aspect-vel std = 1e-5 -> variance 1e-10
	wantDiag := []float64{4, 4, 1e-4, 4, 0.0625, 0.0625, 1e-10, 0.0625}
	for i, want := range wantDiag {
		got := cov.At(i, i)
		if math.Abs(got-want) > want*1e-6+eps {
			t.Errorf("cov[%d][%d] = %v, want %v", i, i, got, want)
		}
	}
}

func TestPredictAdvancesMeanByVelocity(t *testing.T) {
	f := NewFilter()
	mean, cov := f.Initiate(Measurement{0, 0, 1, 40})
	mean.SetVec(4, 3) // vcx
	mean.SetVec(5, 2) // vcy

	newMean, newCov := f.Predict(mean, cov)

	if math.Abs(newMean.AtVec(0)-3) > eps {
		t.Errorf("cx after predict = %v, want 3", newMean.AtVec(0))
	}
	if math.Abs(newMean.AtVec(1)-2) > eps {
		t.Errorf("cy after predict = %v, want 2", newMean.AtVec(1))
	}
	// Process noise strictly grows the diagonal uncertainty.
	for i := 0; i < 8; i++ {
		if newCov.At(i, i) <= cov.At(i, i) {
			t.Errorf("cov[%d][%d] did not grow: before=%v after=%v", i, i, cov.At(i, i), newCov.At(i, i))
		}
	}
}

func TestMultiPredictMatchesPredict(t *testing.T) {
	f := NewFilter()
	m1, c1 := f.Initiate(Measurement{10, 10, 1, 30})
	m2, c2 := f.Initiate(Measurement{50, 60, 0.6, 80})

	wantM1, wantC1 := f.Predict(mat.VecDenseCopyOf(m1), c1)
	wantM2, wantC2 := f.Predict(mat.VecDenseCopyOf(m2), c2)

	gotMeans, gotCovs := f.MultiPredict([]*mat.VecDense{m1, m2}, []*mat.SymDense{c1, c2})

	for i := 0; i < 8; i++ {
		if math.Abs(gotMeans[0].AtVec(i)-wantM1.AtVec(i)) > eps {
			t.Errorf("track 0 mean[%d] = %v, want %v", i, gotMeans[0].AtVec(i), wantM1.AtVec(i))
		}
		if math.Abs(gotMeans[1].AtVec(i)-wantM2.AtVec(i)) > eps {
			t.Errorf("track 1 mean[%d] = %v, want %v", i, gotMeans[1].AtVec(i), wantM2.AtVec(i))
		}
		if math.Abs(gotCovs[0].At(i, i)-wantC1.At(i, i)) > eps {
			t.Errorf("track 0 cov[%d][%d] = %v, want %v", i, i, gotCovs[0].At(i, i), wantC1.At(i, i))
		}
		if math.Abs(gotCovs[1].At(i, i)-wantC2.At(i, i)) > eps {
			t.Errorf("track 1 cov[%d][%d] = %v, want %v", i, i, gotCovs[1].At(i, i), wantC2.At(i, i))
		}
	}
}

func TestUpdateWithExactMeasurementLeavesMeanUnchanged(t *testing.T) {
	f := NewFilter()
	z := Measurement{10, 20, 0.5, 40}
	mean, cov := f.Initiate(z)

	newMean, newCov, err := f.Update(mean, cov, z)
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	for i := 0; i < 4; i++ {
		if math.Abs(newMean.AtVec(i)-z[i]) > 1e-4 {
			t.Errorf("newMean[%d] = %v, want %v", i, newMean.AtVec(i), z[i])
		}
	}
	// Correction with an exact measurement should not increase uncertainty.
	for i := 0; i < 8; i++ {
		if newCov.At(i, i) > cov.At(i, i)+eps {
			t.Errorf("cov[%d][%d] grew after update: before=%v after=%v", i, i, cov.At(i, i), newCov.At(i, i))
		}
	}
}

func TestGatingDistanceGaussianZeroForExactMatch(t *testing.T) {
	f := NewFilter()
	z := Measurement{10, 20, 0.5, 40}
	mean, cov := f.Initiate(z)

	distances, err := f.GatingDistance(mean, cov, []Measurement{z}, false, MetricGaussian)
	if err != nil {
		t.Fatalf("GatingDistance returned error: %v", err)
	}
	if len(distances) != 1 {
		t.Fatalf("expected 1 distance, got %d", len(distances))
	}
	if distances[0] > eps {
		t.Errorf("distance to exact measurement = %v, want ~0", distances[0])
	}
}

func TestGatingDistanceMahalanobisZeroForExactMatch(t *testing.T) {
	f := NewFilter()
	z := Measurement{10, 20, 0.5, 40}
	mean, cov := f.Initiate(z)

	distances, err := f.GatingDistance(mean, cov, []Measurement{z}, false, MetricMahalanobis)
	if err != nil {
		t.Fatalf("GatingDistance returned error: %v", err)
	}
	if distances[0] > eps {
		t.Errorf("mahalanobis distance to exact measurement = %v, want ~0", distances[0])
	}
}

func TestGatingDistanceUnknownMetric(t *testing.T) {
	f := NewFilter()
	mean, cov := f.Initiate(Measurement{10, 20, 0.5, 40})
	_, err := f.GatingDistance(mean, cov, []Measurement{{10, 20, 0.5, 40}}, false, Metric("bogus"))
	if err == nil {
		t.Fatal("expected an error for an unknown metric")
	}
}

func TestMeasurementIsFinite(t *testing.T) {
	if !(Measurement{1, 2, 3, 4}).IsFinite() {
		t.Error("expected finite measurement to be finite")
	}
	if (Measurement{math.NaN(), 2, 3, 4}).IsFinite() {
		t.Error("expected NaN component to make measurement non-finite")
	}
	if (Measurement{math.Inf(1), 2, 3, 4}).IsFinite() {
		t.Error("expected +Inf component to make measurement non-finite")
	}
}
