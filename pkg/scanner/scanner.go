package scanner

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"

	"github.com/agent-matrix/matrix-system/pkg/models"
)

// CheckTypeKubernetes marks checks derived from workload readiness
const CheckTypeKubernetes = "k8s"

// Scanner turns Kubernetes workload readiness into health checks
type Scanner struct {
	clientset kubernetes.Interface
	log       logrus.FieldLogger
	now       func() time.Time
}

// New connects using kubeconfig, or ~/.kube/config when kubeconfig is empty.
func New(kubeconfig string, log logrus.FieldLogger) (*Scanner, error) {
	if kubeconfig == "" {
		if home := homedir.HomeDir(); home != "" {
			kubeconfig = filepath.Join(home, ".kube", "config")
		}
	}

	config, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to build config: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	return NewWithClient(clientset, log), nil
}

// NewWithClient wraps an existing clientset.
func NewWithClient(clientset kubernetes.Interface, log logrus.FieldLogger) *Scanner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scanner{
		clientset: clientset,
		log:       log.WithField("source", "k8s"),
		now:       time.Now,
	}
}

// Scan checks one namespace, or every namespace when allNamespaces is set.
// A namespace that fails to list is logged and skipped.
func (s *Scanner) Scan(ctx context.Context, namespace string, allNamespaces bool) ([]models.HealthCheck, error) {
	namespaces := []string{namespace}
	if allNamespaces {
		nsList, err := s.clientset.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to list namespaces: %w", err)
		}
		namespaces = namespaces[:0]
		for _, ns := range nsList.Items {
			namespaces = append(namespaces, ns.Name)
		}
		s.log.Infof("Scanning %d namespaces", len(namespaces))
	}

	var all []models.HealthCheck
	for _, ns := range namespaces {
		checks, err := s.ScanNamespace(ctx, ns)
		if err != nil {
			if !allNamespaces {
				return nil, err
			}
			s.log.WithError(err).Warnf("Error scanning namespace %s", ns)
			continue
		}
		all = append(all, checks...)
	}
	return all, nil
}

// ScanNamespace returns one check per Deployment, StatefulSet and DaemonSet
// in namespace, scored by ready over desired replicas.
func (s *Scanner) ScanNamespace(ctx context.Context, namespace string) ([]models.HealthCheck, error) {
	deployments, err := s.clientset.AppsV1().Deployments(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}

	statefulSets, err := s.clientset.AppsV1().StatefulSets(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list statefulsets: %w", err)
	}

	daemonSets, err := s.clientset.AppsV1().DaemonSets(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list daemonsets: %w", err)
	}

	var checks []models.HealthCheck
	add := func(kind, name string, ready, desired int32) {
		check, err := s.readiness(namespace, kind, name, ready, desired)
		if err != nil {
			s.log.WithError(err).Warnf("skipping %s %s/%s", kind, namespace, name)
			return
		}
		checks = append(checks, *check)
	}

	for _, d := range deployments.Items {
		add("Deployment", d.Name, d.Status.ReadyReplicas, replicas(d.Spec.Replicas))
	}
	for _, sts := range statefulSets.Items {
		add("StatefulSet", sts.Name, sts.Status.ReadyReplicas, replicas(sts.Spec.Replicas))
	}
	for _, ds := range daemonSets.Items {
		add("DaemonSet", ds.Name, ds.Status.NumberReady, ds.Status.DesiredNumberScheduled)
	}

	sort.Slice(checks, func(i, j int) bool { return checks[i].AppUID < checks[j].AppUID })
	return checks, nil
}

func (s *Scanner) readiness(namespace, kind, name string, ready, desired int32) (*models.HealthCheck, error) {
	// Scaled to zero on purpose counts as healthy
	score := 100.0
	result := "pass"
	if desired > 0 {
		score = float64(ready) / float64(desired) * 100
		switch {
		case ready >= desired:
			score, result = 100, "pass"
		case ready == 0:
			result = "fail"
		default:
			result = "warning"
		}
	}

	return models.NewHealthCheck(models.HealthCheck{
		AppUID:    namespace + "/" + name,
		CheckType: CheckTypeKubernetes,
		Result:    result,
		Status:    models.StatusForScore(score),
		Score:     score,
		Reasons: map[string]interface{}{
			"kind":    kind,
			"ready":   ready,
			"desired": desired,
		},
		Timestamp: s.now().UTC(),
	})
}

// Checks implements datasource.HealthSource with target as the namespace.
func (s *Scanner) Checks(ctx context.Context, namespace string) ([]models.HealthCheck, error) {
	return s.ScanNamespace(ctx, namespace)
}

func (s *Scanner) IsAvailable(ctx context.Context) bool {
	version, err := s.clientset.Discovery().ServerVersion()
	if err != nil {
		s.log.WithError(err).Debug("cluster unreachable")
		return false
	}
	s.log.Debugf("Connected to cluster (version: %s)", version.GitVersion)
	return true
}

func (s *Scanner) Name() string {
	return "Kubernetes"
}

// replicas defaults a nil spec.replicas to 1 as the API server does.
func replicas(r *int32) int32 {
	if r == nil {
		return 1
	}
	return *r
}
