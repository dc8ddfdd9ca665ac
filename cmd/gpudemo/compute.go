package main

import (
	"encoding/binary"
	"fmt"

	"github.com/Jeffail/tunny"
	"github.com/gogpu/gputypes"
	"github.com/hashicorp/go-multierror"

	"github.com/gogpu/gpucmd"
	"github.com/gogpu/gpucmd/gpucore"
)

const workgroupSize = 64

const doubleWGSL = `
@group(0) @binding(0) var<storage, read_write> data: array<u32>;

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    if (id.x < arrayLength(&data)) {
        data[id.x] = data[id.x] * 2u;
    }
}
`

// computeJob is one command buffer worth of work: upload src into dst and
// double every element in place.
type computeJob struct {
	index int
	src   *gpucmd.TransferBuffer
	dst   *gpucmd.DataBuffer
}

// runCompute records one job per worker on a tunny pool. Command buffers
// are recorded and submitted concurrently.
func runCompute(dev *gpucmd.Device, workers, elements int) error {
	if workers <= 0 || elements <= 0 {
		return nil
	}
	shader, err := dev.CreateComputeShader(gpucore.ComputePipelineDescriptor{
		Label:                      "double",
		Code:                       []byte(doubleWGSL),
		Format:                     gpucore.ShaderFormatWGSL,
		EntryPoint:                 "main",
		NumReadWriteStorageBuffers: 1,
		ThreadCountX:               workgroupSize,
		ThreadCountY:               1,
		ThreadCountZ:               1,
	})
	if err != nil {
		return err
	}
	defer shader.Dispose()

	jobs := make([]*computeJob, 0, workers)
	defer func() {
		for _, j := range jobs {
			j.src.Dispose()
			j.dst.Dispose()
		}
	}()
	for i := range workers {
		j, err := newComputeJob(dev, i, elements)
		if err != nil {
			return err
		}
		jobs = append(jobs, j)
	}

	groups := uint32((elements + workgroupSize - 1) / workgroupSize)
	pool := tunny.NewFunc(workers, func(payload interface{}) interface{} {
		return recordCompute(dev, shader, payload.(*computeJob), groups)
	})
	defer pool.Close()

	errs := make(chan error, len(jobs))
	for _, j := range jobs {
		go func() {
			err, _ := pool.Process(j).(error)
			errs <- err
		}()
	}

	var result *multierror.Error
	for range jobs {
		if err := <-errs; err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func newComputeJob(dev *gpucmd.Device, index, elements int) (*computeJob, error) {
	size := uint64(elements) * 4
	src, err := dev.CreateTransferBuffer(gpucore.TransferBufferDescriptor{
		Size:  size,
		Usage: gpucore.TransferUsageUpload,
	})
	if err != nil {
		return nil, err
	}
	view, err := src.Map(false)
	if err != nil {
		src.Dispose()
		return nil, err
	}
	for k := range elements {
		binary.LittleEndian.PutUint32(view[k*4:], uint32(index*elements+k))
	}
	if err := src.Unmap(); err != nil {
		src.Dispose()
		return nil, err
	}

	dst, err := dev.CreateDataBuffer(gpucore.BufferDescriptor{
		Label: fmt.Sprintf("job %d", index),
		Size:  size,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		src.Dispose()
		return nil, err
	}
	return &computeJob{index: index, src: src, dst: dst}, nil
}

func recordCompute(dev *gpucmd.Device, shader *gpucmd.ComputeShader, j *computeJob, groups uint32) (err error) {
	cb, err := dev.AcquireCommandBuffer()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil && cb.State() == gpucmd.CommandBufferRecording {
			_ = cb.Close()
		}
	}()

	if err := cb.PushDebugGroup(fmt.Sprintf("compute job %d", j.index)); err != nil {
		return err
	}

	cp, err := cb.BeginCopyPass()
	if err != nil {
		return err
	}
	if err := cp.UploadToDataBuffer(j.src, 0, j.dst, 0, uint32(j.dst.Size()), false); err != nil {
		return err
	}
	if err := cp.End(); err != nil {
		return err
	}

	pass, err := cb.BeginComputePass(gpucmd.ComputePassParams{
		StorageBuffers: []gpucmd.StorageBufferBinding{{Buffer: j.dst}},
	})
	if err != nil {
		return err
	}
	if err := pass.BindShader(shader); err != nil {
		return err
	}
	if err := pass.Dispatch(groups, 1, 1); err != nil {
		return err
	}
	if err := pass.End(); err != nil {
		return err
	}

	if err := cb.PopDebugGroup(); err != nil {
		return err
	}
	return cb.Submit()
}
