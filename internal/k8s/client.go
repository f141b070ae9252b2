package k8s

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
)

// Client wraps the Kubernetes client
type Client struct {
	clientset *kubernetes.Clientset
	namespace string
}

// NewClient creates a new Kubernetes client.
// If namespace is empty, defaults to "claimsync".
func NewClient(namespace string) (*Client, error) {
	if namespace == "" {
		namespace = "claimsync"
	}

	config, err := getKubeConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get kubeconfig: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	return &Client{
		clientset: clientset,
		namespace: namespace,
	}, nil
}

// getKubeConfig gets the Kubernetes configuration
func getKubeConfig() (*rest.Config, error) {
	// Try in-cluster config first (when running inside Kubernetes)
	config, err := rest.InClusterConfig()
	if err == nil {
		return config, nil
	}

	// Fall back to kubeconfig file
	var kubeconfig string
	if home := homedir.HomeDir(); home != "" {
		kubeconfig = filepath.Join(home, ".kube", "config")
	}

	// Check if KUBECONFIG env var is set
	if envKubeconfig := os.Getenv("KUBECONFIG"); envKubeconfig != "" {
		kubeconfig = envKubeconfig
	}

	config, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to build config: %w", err)
	}

	return config, nil
}

// CreateNightlySyncJob creates a Kubernetes Job running one nightly
// evidence sweep. The job pod runs the nightly-sync binary against the
// same database and mailbox volume as the scheduled CronJob.
func (c *Client) CreateNightlySyncJob(ctx context.Context, jobName string, containerImage string) error {
	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      jobName,
			Namespace: c.namespace,
			Labels: map[string]string{
				"app":          "nightly-sync",
				"job-type":     "evidence-sync",
				"triggered-by": "api",
			},
		},
		Spec: batchv1.JobSpec{
			BackoffLimit:            int32Ptr(2),
			TTLSecondsAfterFinished: int32Ptr(86400),
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: map[string]string{
						"app":      "nightly-sync",
						"job-type": "evidence-sync",
					},
				},
				Spec: c.buildPodSpec(containerImage),
			},
		},
	}

	_, err := c.clientset.BatchV1().Jobs(c.namespace).Create(ctx, job, metav1.CreateOptions{})
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// buildPodSpec builds the pod spec for the nightly sync job
func (c *Client) buildPodSpec(containerImage string) corev1.PodSpec {
	return corev1.PodSpec{
		RestartPolicy:      corev1.RestartPolicyNever,
		ServiceAccountName: "nightly-sync-sa",
		Containers: []corev1.Container{
			{
				Name:    "nightly-sync",
				Image:   containerImage,
				Command: []string{"/app/bin/nightly-sync"},
				Env: []corev1.EnvVar{
					{
						Name: "DATABASE_URL",
						ValueFrom: &corev1.EnvVarSource{
							SecretKeyRef: &corev1.SecretKeySelector{
								LocalObjectReference: corev1.LocalObjectReference{
									Name: "claimsync-secrets",
								},
								Key: "database-url",
							},
						},
					},
					{
						Name: "EVIDENCE_BUCKET",
						ValueFrom: &corev1.EnvVarSource{
							SecretKeyRef: &corev1.SecretKeySelector{
								LocalObjectReference: corev1.LocalObjectReference{
									Name: "claimsync-secrets",
								},
								Key: "evidence-bucket",
							},
						},
					},
					{
						Name: "SENDGRID_API_KEY",
						ValueFrom: &corev1.EnvVarSource{
							SecretKeyRef: &corev1.SecretKeySelector{
								LocalObjectReference: corev1.LocalObjectReference{
									Name: "claimsync-secrets",
								},
								Key:      "sendgrid-api-key",
								Optional: boolPtr(true),
							},
						},
					},
				},
				VolumeMounts: []corev1.VolumeMount{
					{
						Name:      "mailboxes",
						MountPath: "/mailboxes",
						ReadOnly:  true,
					},
				},
				Resources: corev1.ResourceRequirements{
					Requests: corev1.ResourceList{
						corev1.ResourceMemory: resourceQuantity("256Mi"),
						corev1.ResourceCPU:    resourceQuantity("250m"),
					},
					Limits: corev1.ResourceList{
						corev1.ResourceMemory: resourceQuantity("1Gi"),
						corev1.ResourceCPU:    resourceQuantity("1000m"),
					},
				},
			},
		},
		Volumes: []corev1.Volume{
			{
				Name: "mailboxes",
				VolumeSource: corev1.VolumeSource{
					PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{
						ClaimName: "mailbox-archive",
						ReadOnly:  true,
					},
				},
			},
		},
	}
}

// GetJobStatus gets the status of a job
func (c *Client) GetJobStatus(ctx context.Context, jobName string) (*batchv1.Job, error) {
	job, err := c.clientset.BatchV1().Jobs(c.namespace).Get(ctx, jobName, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// DeleteJob deletes a job
func (c *Client) DeleteJob(ctx context.Context, jobName string) error {
	deletePolicy := metav1.DeletePropagationForeground
	err := c.clientset.BatchV1().Jobs(c.namespace).Delete(ctx, jobName, metav1.DeleteOptions{
		PropagationPolicy: &deletePolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

// Helper functions

func int32Ptr(i int32) *int32 {
	return &i
}

func boolPtr(b bool) *bool {
	return &b
}

func resourceQuantity(value string) resource.Quantity {
	qty, err := resource.ParseQuantity(value)
	if err != nil {
		// Return zero quantity on error
		return resource.Quantity{}
	}
	return qty
}
